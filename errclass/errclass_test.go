// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import (
	"errors"
	"fmt"
	"testing"

	"github.com/N1tramPH/network-simulator/netsim/packet"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	// testcase is a test case implemented by this function.
	type testcase struct {
		input  error
		expect string
	}

	// start with a test case for the nil error
	var tests = []testcase{
		{
			input:  nil,
			expect: "",
		},
	}

	// add tests for cases we can test with errors.Is
	for key, value := range errorsIsMap {
		tests = append(tests, testcase{
			input:  key,
			expect: value,
		})
		tests = append(tests, testcase{
			input:  fmt.Errorf("wrapped: %w", key),
			expect: value,
		})
	}

	// add a test for the generic exceed error
	tests = append(tests, testcase{
		input:  &packet.ExceedError[int]{Root: packet.New[int](nil, "", "")},
		expect: EPACKETEXCEED,
	})

	// add a test for the fallback
	tests = append(tests, testcase{
		input:  errors.New("unknown error"),
		expect: EGENERIC,
	})

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.input), func(t *testing.T) {
			assert.Equal(t, tt.expect, New(tt.input))
		})
	}
}
