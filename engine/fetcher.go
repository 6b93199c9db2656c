// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package engine

import "context"

// Fetcher is the external HTTP collaborator the core requires (spec.md
// §6.3): given a URL and an inclusive byte range, return the bytes or an
// error. Implementations may return more than requested (the surplus is
// ignored) but a short response is only tolerated when hi is the final
// byte of the target file.
type Fetcher interface {
	Fetch(ctx context.Context, url string, lo, hi int64) ([]byte, error)
}
