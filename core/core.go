package core

import "github.com/Itangalo/scenario-lab-sub001/logging"

// EnsureLogger guarantees a non-nil logger by substituting a NoOpLogger when
// given nil. Component constructors call it so optional loggers never need a
// nil check at call sites.
func EnsureLogger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NoOpLogger{}
	}
	return l
}
