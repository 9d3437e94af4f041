// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreset_Validate(t *testing.T) {
	t.Run("will accept the built-in presets", func(t *testing.T) {
		assert.Nil(t, LowRuntimeImpact.Validate())
		assert.Nil(t, InstantDataDelivery.Validate())
	})

	t.Run("will return an InvalidPresetError", func(t *testing.T) {
		testCases := []struct {
			Name   string
			Modify func(*Preset)
			Cause  error
		}{
			{
				Name:   "if the max file size is not positive",
				Modify: func(p *Preset) { p.MaxFileSize = 0 },
				Cause:  errNonPositiveFileSize,
			},
			{
				Name:   "if the quota is below the max file size",
				Modify: func(p *Preset) { p.MaxDirectorySize = p.MaxFileSize - 1 },
				Cause:  errQuotaBelowFileSize,
			},
			{
				Name:   "if a record could be larger than a file",
				Modify: func(p *Preset) { p.MaxRecordSize = p.MaxFileSize + 1 },
				Cause:  errRecordLargerThanFile,
			},
			{
				Name:   "if the write window is not positive",
				Modify: func(p *Preset) { p.MaxFileAgeForWrite = 0 },
				Cause:  errNonPositiveWriteWindow,
			},
			{
				Name:   "if the retention is shorter than the write window",
				Modify: func(p *Preset) { p.MaxFileAgeForRead = time.Second },
				Cause:  errRetentionBelowWindow,
			},
			{
				Name:   "if the records limit is not positive",
				Modify: func(p *Preset) { p.MaxRecordsInFile = 0 },
				Cause:  errNonPositiveRecordsLimit,
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				p := LowRuntimeImpact
				testCase.Modify(&p)

				err := p.Validate()

				var iperr InvalidPresetError
				if !assert.ErrorAs(t, err, &iperr) {
					return
				}
				assert.ErrorIs(t, err, testCase.Cause)
			})
		}
	})
}
