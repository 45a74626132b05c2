package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSignatureInvalid = errors.New("invalid signature")
	ErrSignatureExpired = errors.New("signature expired")
)

// URLSigner issues time-bounded links to artifacts. A link carries its expiry
// as Unix seconds and an HMAC-SHA256 of "<path>\n<expiry>".
type URLSigner struct {
	Key     []byte
	TTL     time.Duration
	BaseURL string
}

func NewURLSigner(key []byte, ttl time.Duration, baseURL string) (*URLSigner, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("signing ttl must be positive, got %s", ttl)
	}
	return &URLSigner{Key: key, TTL: ttl, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *URLSigner) mac(path string, expires int64) string {
	h := hmac.New(sha256.New, s.Key)
	fmt.Fprintf(h, "%s\n%d", path, expires)
	return hex.EncodeToString(h.Sum(nil))
}

// Sign returns the URL for artifact path and when it stops being valid.
func (s *URLSigner) Sign(path string, now time.Time) (string, time.Time) {
	expiresAt := now.Add(s.TTL).Truncate(time.Second)
	expires := expiresAt.Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.mac(path, expires))

	u := s.BaseURL + "/artifacts/" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
	return u, expiresAt.UTC()
}

// Verify checks the expires and signature query values issued for path.
func (s *URLSigner) Verify(path, expires, signature string, now time.Time) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry %q", ErrSignatureInvalid, expires)
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: bad encoding", ErrSignatureInvalid)
	}
	want, _ := hex.DecodeString(s.mac(path, exp))
	if !hmac.Equal(got, want) {
		return ErrSignatureInvalid
	}
	if now.Unix() > exp {
		return ErrSignatureExpired
	}
	return nil
}
