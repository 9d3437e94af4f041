// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/z5labs/spool/internal/try"
)

// TextTemplateRenderer is an io.Reader that renders a text/template from
// a given io.Reader. The rendered template can then be read via [TextTemplateRenderer.Read].
//
// The "env" function is available so secrets such as the API key
// can be kept out of config files:
//
//	apiKey: {{env "DD_API_KEY"}}
type TextTemplateRenderer struct {
	r io.Reader

	funcs      template.FuncMap
	renderOnce sync.Once
	renderErr  error
	buf        bytes.Buffer
}

// RenderTextTemplate configures a TextTemplateRenderer.
func RenderTextTemplate(r io.Reader) *TextTemplateRenderer {
	return &TextTemplateRenderer{
		r: r,
		funcs: template.FuncMap{
			"env": os.Getenv,
		},
	}
}

// TextTemplateParseError occurs when the config template fails to be parsed.
type TextTemplateParseError struct {
	Cause error
}

// Error implements the error interface.
func (e TextTemplateParseError) Error() string {
	return fmt.Sprintf("failed to parse config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e TextTemplateParseError) Unwrap() error {
	return e.Cause
}

// TextTemplateExecError occurs when a template fails to execute.
type TextTemplateExecError struct {
	Cause error
}

// Error implements the error interface.
func (e TextTemplateExecError) Error() string {
	return fmt.Sprintf("failed to exec config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e TextTemplateExecError) Unwrap() error {
	return e.Cause
}

// Read implements the io.Reader interface.
func (ttr *TextTemplateRenderer) Read(b []byte) (int, error) {
	ttr.renderOnce.Do(func() {
		ttr.renderErr = ttr.render()
	})
	if ttr.renderErr != nil {
		return 0, ttr.renderErr
	}
	return ttr.buf.Read(b)
}

func (ttr *TextTemplateRenderer) render() (err error) {
	if c, ok := ttr.r.(io.Closer); ok {
		defer try.Close(&err, c)
	}

	var sb strings.Builder
	_, err = io.Copy(&sb, ttr.r)
	if err != nil {
		return err
	}

	tmpl, err := template.New("config").Funcs(ttr.funcs).Parse(sb.String())
	if err != nil {
		return TextTemplateParseError{Cause: err}
	}

	err = tmpl.Execute(&ttr.buf, struct{}{})
	if err != nil {
		return TextTemplateExecError{Cause: err}
	}
	return nil
}
