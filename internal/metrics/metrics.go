/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package metrics keeps a handful of atomically-updated counters for the
// JIT engine: no background sampler is needed here (there is no CPU/RPS to
// sample, unlike an HTTP server), just plain sync/atomic counters read on
// demand by the REPL's (stats) command.
package metrics

import (
	"fmt"
	"sync/atomic"

	units "github.com/docker/go-units"
)

// Counters is a set of process-wide engine counters. The zero value is
// ready to use.
type Counters struct {
	FormsCompiled  atomic.Int64
	BytesEmitted   atomic.Int64
	SessionsActive atomic.Int64
	RuntimeErrors  atomic.Int64
}

// Default is the counter set used when the caller does not maintain its own
// (e.g. a single-session CLI process).
var Default Counters

func (c *Counters) FormCompiled(bytes int) {
	c.FormsCompiled.Add(1)
	c.BytesEmitted.Add(int64(bytes))
}

func (c *Counters) SessionOpened() { c.SessionsActive.Add(1) }
func (c *Counters) SessionClosed() { c.SessionsActive.Add(-1) }
func (c *Counters) RuntimeError()  { c.RuntimeErrors.Add(1) }

// Snapshot renders the counters the way a (stats) REPL command would print
// them, using docker/go-units for a human-readable byte count.
func (c *Counters) Snapshot() string {
	return fmt.Sprintf(
		"forms compiled: %d\nbytes emitted: %s\nsessions active: %d\nruntime errors: %d",
		c.FormsCompiled.Load(),
		units.BytesSize(float64(c.BytesEmitted.Load())),
		c.SessionsActive.Load(),
		c.RuntimeErrors.Load(),
	)
}
