// Package remote holds the clients for the citation generator and the
// credibility metrics service.
package remote

import "fmt"

// Error reports a failed call to a collaborator: a transport failure, a
// non-2xx status or an undecodable body.
type Error struct {
	Service string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
