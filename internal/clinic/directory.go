package clinic

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/klinicq/queue-platform/pkg/logging"
	"github.com/redis/go-redis/v9"
)

const (
	codeCachePrefix = "clinic:code:"
	codeCacheTTL    = 24 * time.Hour

	// codeAlphabet omits characters that read ambiguously on a phone screen.
	codeAlphabet     = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	generateAttempts = 5
)

var (
	codeShape  = regexp.MustCompile(`^KQ-[A-Z0-9]{4}$`)
	codeInText = regexp.MustCompile(`(?i)\bKQ-[A-Z0-9]{4}\b`)
)

// NormalizeCode canonicalizes short-code input for case-insensitive lookup.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCode reports whether a normalized code has the KQ-XXXX shape.
func ValidCode(code string) bool {
	return codeShape.MatchString(code)
}

// FindCodeInText extracts the first short code mentioned anywhere in free
// text, normalized for lookup.
func FindCodeInText(text string) (string, bool) {
	m := codeInText.FindString(text)
	if m == "" {
		return "", false
	}
	return NormalizeCode(m), true
}

// Directory resolves short codes to clinics, caching hits in Redis in front
// of the DynamoDB mapping table.
type Directory struct {
	store  *Store
	rdb    *redis.Client
	logger *logging.Logger
}

// NewDirectory builds a directory over the clinic store. The Redis client is
// optional; without it every lookup goes to DynamoDB.
func NewDirectory(store *Store, rdb *redis.Client, logger *logging.Logger) *Directory {
	if store == nil {
		panic("clinic: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{
		store:  store,
		rdb:    rdb,
		logger: logger,
	}
}

// Resolve looks up the clinic assigned to a short code. Input that is not
// shaped like a short code is rejected before any lookup.
func (d *Directory) Resolve(ctx context.Context, raw string) (*Clinic, error) {
	code := NormalizeCode(raw)
	if !ValidCode(code) {
		return nil, fmt.Errorf("clinic: resolve %q: %w", raw, ErrMalformedCode)
	}
	if c, ok := d.fromCache(ctx, code); ok {
		return c, nil
	}
	clinicID, err := d.store.resolveCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c, err := d.store.Get(ctx, clinicID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Mapping points at a clinic that no longer exists.
			return nil, fmt.Errorf("clinic: resolve %s: %w", code, ErrCodeNotFound)
		}
		return nil, err
	}
	d.toCache(ctx, code, c)
	return c, nil
}

// AssignCode assigns a short code to a clinic and returns the updated
// record. An empty requested code assigns a generated one. Codes are
// immutable once assigned: requesting the held code (or a generated one when
// a code exists) is a no-op, requesting any other code fails with
// ErrCodeAlreadyAssigned.
func (d *Directory) AssignCode(ctx context.Context, clinicID, requested string) (*Clinic, error) {
	current, err := d.store.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	var code string
	if strings.TrimSpace(requested) == "" {
		if current.ShortCode != "" {
			return current, nil
		}
		code, err = d.claimGenerated(ctx, clinicID)
		if err != nil {
			return nil, err
		}
	} else {
		code = NormalizeCode(requested)
		if !ValidCode(code) {
			return nil, fmt.Errorf("clinic: assign %q: %w", requested, ErrMalformedCode)
		}
		if current.ShortCode == code {
			return current, nil
		}
		if current.ShortCode != "" {
			return nil, fmt.Errorf("clinic: assign %s to %s holding %s: %w",
				code, clinicID, current.ShortCode, ErrCodeAlreadyAssigned)
		}
		if err := d.store.claimCode(ctx, code, clinicID); err != nil {
			return nil, err
		}
	}

	updated, err := d.store.setClinicCode(ctx, clinicID, code)
	if err != nil {
		if relErr := d.store.releaseCode(ctx, code); relErr != nil {
			d.logger.Error("failed to release short code after assignment failure",
				"clinic_id", clinicID, "code", code, "error", relErr)
		}
		return nil, err
	}
	d.invalidate(ctx, code)

	d.logger.Info("short code assigned", "clinic_id", clinicID, "code", code)
	return updated, nil
}

// Invalidate drops any cached resolution for a clinic's code. Call after
// clinic updates so directory lookups see fresh data.
func (d *Directory) Invalidate(ctx context.Context, code string) {
	d.invalidate(ctx, NormalizeCode(code))
}

func (d *Directory) claimGenerated(ctx context.Context, clinicID string) (string, error) {
	for i := 0; i < generateAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		err = d.store.claimCode(ctx, code, clinicID)
		if err == nil {
			return code, nil
		}
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("clinic: could not find a free short code after %d attempts", generateAttempts)
}

func (d *Directory) fromCache(ctx context.Context, code string) (*Clinic, bool) {
	if d.rdb == nil {
		return nil, false
	}
	data, err := d.rdb.Get(ctx, codeCachePrefix+code).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.logger.Debug("short code cache read failed", "code", code, "error", err)
		}
		return nil, false
	}
	var c Clinic
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		d.logger.Debug("short code cache entry corrupt", "code", code, "error", err)
		return nil, false
	}
	return &c, true
}

func (d *Directory) toCache(ctx context.Context, code string, c *Clinic) {
	if d.rdb == nil {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := d.rdb.Set(ctx, codeCachePrefix+code, data, codeCacheTTL).Err(); err != nil {
		d.logger.Debug("short code cache write failed", "code", code, "error", err)
	}
}

func (d *Directory) invalidate(ctx context.Context, code string) {
	if d.rdb == nil || code == "" {
		return
	}
	if err := d.rdb.Del(ctx, codeCachePrefix+code).Err(); err != nil {
		d.logger.Debug("short code cache invalidation failed", "code", code, "error", err)
	}
}

func randomCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("clinic: failed to generate short code: %w", err)
	}
	out := make([]byte, 4)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "KQ-" + string(out), nil
}
