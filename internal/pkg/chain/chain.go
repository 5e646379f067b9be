// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chain transfers control to the next boot stage.
package chain

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Loader errors.
var (
	ErrNotFound    = errors.New("next stage image not found")
	ErrLoadFailed  = errors.New("next stage image load failed")
	ErrStartFailed = errors.New("next stage image start failed")
)

// Image is the identity of the next boot stage.
//
// The identity is fixed by configuration, it is never derived from loaded artifacts.
type Image struct {
	Path    string
	Initrd  string
	Cmdline string
}

// String implements fmt.Stringer.
func (i Image) String() string {
	return i.Path
}

// Loader locates and starts the next boot stage.
type Loader interface {
	// LoadAndStart transfers control to the image.
	//
	// On success control doesn't return to the caller, unless the loader is a test double.
	LoadAndStart(image Image) error
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(Image) error

// LoadAndStart implements Loader.
func (f LoaderFunc) LoadAndStart(image Image) error {
	return f(image)
}

// Method names a loader implementation.
type Method string

// Loader methods.
const (
	MethodKexec Method = "kexec"
	MethodExec  Method = "exec"
)

// ParseMethod parses the loader method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case MethodKexec, MethodExec:
		return m, nil
	default:
		return "", fmt.Errorf("unknown chain method %q", s)
	}
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	return fmt.Errorf("%s: %w: %w", path, ErrLoadFailed, err)
}
