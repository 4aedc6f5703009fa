package biography

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDProvider mints opaque identifiers for events and biographies.
type IDProvider interface {
	NewID(seed string) (string, error)
}

type hashIDProvider struct {
	clock func() time.Time
}

// NewHashIDProvider returns an IDProvider that hashes the seed together with the current time
// into a name-based (SHA-1) UUID rendered as 32 lowercase hex characters.
func NewHashIDProvider(clock func() time.Time) IDProvider {
	if clock == nil {
		clock = time.Now
	}
	return &hashIDProvider{clock: clock}
}

func (p *hashIDProvider) NewID(seed string) (string, error) {
	seconds := float64(p.clock().UnixMicro()) / 1e6
	name := seed + strconv.FormatFloat(seconds, 'f', -1, 64)
	value := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name))
	return strings.ReplaceAll(value.String(), "-", ""), nil
}
