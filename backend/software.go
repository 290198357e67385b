package backend

import "github.com/gogpu/postfx/backend/software"

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() (Device, error) {
		return software.New(), nil
	})
}
