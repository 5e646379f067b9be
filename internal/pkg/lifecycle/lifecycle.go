// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package lifecycle implements scoped acquisition of buffers and other resources.
//
// A resource is registered with the Scope at the moment it is acquired, and the Scope
// releases every registered resource exactly once when it is closed, in reverse order
// of acquisition.
package lifecycle

import (
	"github.com/hashicorp/go-multierror"
)

// Releaser is a resource which can be released.
type Releaser interface {
	Release() error
}

// ReleaseFunc adapts a function to the Releaser interface.
type ReleaseFunc func() error

// Release implements Releaser.
func (f ReleaseFunc) Release() error {
	return f()
}

// Scope tracks acquired resources.
//
// The zero value is ready to use. Scope is not safe for concurrent use.
type Scope struct {
	releasers []Releaser
	closed    bool
}

// Acquire registers r to be released when the scope is closed.
//
// Acquire on a closed scope releases r immediately, so a resource can never outlive its scope.
func (s *Scope) Acquire(r Releaser) error {
	if r == nil {
		return nil
	}

	if s.closed {
		return r.Release()
	}

	s.releasers = append(s.releasers, r)

	return nil
}

// Len returns the number of resources still held by the scope.
func (s *Scope) Len() int {
	return len(s.releasers)
}

// Close releases all registered resources in reverse order.
//
// Every resource is released even if some of them fail, the errors are aggregated.
// Close is idempotent.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	var result *multierror.Error

	for i := len(s.releasers) - 1; i >= 0; i-- {
		if err := s.releasers[i].Release(); err != nil {
			result = multierror.Append(result, err)
		}

		s.releasers[i] = nil
	}

	s.releasers = nil

	return result.ErrorOrNil()
}
