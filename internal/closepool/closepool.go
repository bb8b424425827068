// SPDX-License-Identifier: GPL-3.0-or-later

// Package closepool tracks the files and writers a command opens
// so that they are closed in a single operation on exit.
package closepool

import (
	"errors"
	"io"
	"os"
	"slices"
)

// Pool allows pooling a set of [io.Closer].
//
// The zero value is ready to use.
type Pool struct {
	handles []io.Closer
}

// Add adds a given [io.Closer] to the pool.
func (p *Pool) Add(c io.Closer) {
	p.handles = append(p.handles, c)
}

// Create creates or truncates the named file and adds it to the pool.
// The path "-" returns a non-closing writer for the standard output.
func (p *Pool) Create(path string) (io.Writer, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	fp, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	p.Add(fp)
	return fp, nil
}

// Close closes all the [io.Closer] inside the pool iterating
// in backward order. The returned error is the join of all the
// errors that occurred when closing.
func (p *Pool) Close() error {
	handles := p.handles
	p.handles = nil
	var errv []error
	for _, c := range slices.Backward(handles) {
		if err := c.Close(); err != nil {
			errv = append(errv, err)
		}
	}
	return errors.Join(errv...)
}
