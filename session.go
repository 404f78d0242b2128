// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	valueCookiePrefix = "ctx_"
	sigCookiePrefix   = "ctx-sig_"

	// MinSecretKeyLen is the shortest secret key SetSecretKey accepts.
	MinSecretKeyLen = 10

	cookieMaxAge = 10 * 365 * 24 * 60 * 60
)

// SetSecretKey sets the key signing context cookies. It may be called once
// per server; without a key no context field is persisted or trusted.
func (s *Server) SetSecretKey(key string) error {
	if len(key) < MinSecretKeyLen {
		return usageErrorf("the secret key must have at least %d characters", MinSecretKeyLen)
	}
	if !s.secretKey.CompareAndSwap(nil, &key) {
		return usageErrorf("the secret key can be set only once")
	}
	return nil
}

func (s *Server) key() (string, bool) {
	k := s.secretKey.Load()
	if k == nil {
		return "", false
	}
	return *k, true
}

func sign(key, value string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func verify(key, value, sig string) bool {
	want := sign(key, value)
	return hmac.Equal([]byte(want), []byte(sig))
}

// sessionCookies turns the mutations of a call into value and signature
// cookies. A value the codec cannot serialize is a usage error.
func (s *Server) sessionCookies(endpoint string, mutations []Mutation) ([]*http.Cookie, error) {
	if len(mutations) == 0 {
		return nil, nil
	}
	key, ok := s.key()
	if !ok {
		for _, m := range mutations {
			if _, warned := s.unpersisted.LoadOrStore(m.Field, true); !warned {
				s.logger.Warn("context field modified but not persisted: no secret key set",
					zap.String("field", m.Field),
					zap.String("endpoint", endpoint))
			}
		}
		return nil, nil
	}

	cookies := make([]*http.Cookie, 0, 2*len(mutations))
	for _, m := range mutations {
		serialized, err := s.codec.Serialize(m.Value)
		if err != nil {
			return nil, &UsageError{
				Msg: "endpoint `" + endpoint + "` set context field `" + m.Field + "` to a value that cannot be serialized",
				Err: err,
			}
		}
		value := &http.Cookie{
			Name:   valueCookiePrefix + m.Field,
			Value:  url.QueryEscape(serialized),
			Path:   "/",
			MaxAge: cookieMaxAge,
		}
		sig := &http.Cookie{
			Name:     sigCookiePrefix + m.Field,
			Value:    sign(key, serialized),
			Path:     "/",
			MaxAge:   cookieMaxAge,
			HttpOnly: true,
			Secure:   true,
		}
		if err := value.Valid(); err != nil {
			return nil, &UsageError{Msg: "context field `" + m.Field + "` cannot be stored in a cookie", Err: err}
		}
		cookies = append(cookies, value, sig)
	}
	return cookies, nil
}

// cookieLayer returns the context fields recovered from verified cookies.
// Unsigned, mis-signed or undecodable fields are absent.
func (s *Server) cookieLayer(headers http.Header) map[string]any {
	key, ok := s.key()
	if !ok || len(headers.Values("Cookie")) == 0 {
		return nil
	}
	jar := (&http.Request{Header: headers}).Cookies()

	sigs := make(map[string]string)
	for _, c := range jar {
		if field, ok := strings.CutPrefix(c.Name, sigCookiePrefix); ok {
			sigs[field] = c.Value
		}
	}

	fields := make(map[string]any)
	for _, c := range jar {
		field, ok := strings.CutPrefix(c.Name, valueCookiePrefix)
		if !ok || field == "" {
			continue
		}
		serialized, err := url.QueryUnescape(c.Value)
		if err != nil {
			s.logger.Warn("ignoring undecodable context cookie", zap.String("field", field), zap.Error(err))
			continue
		}
		sig, signed := sigs[field]
		if !signed || !verify(key, serialized, sig) {
			s.logger.Warn("ignoring context cookie with missing or invalid signature", zap.String("field", field))
			continue
		}
		v, err := s.codec.Deserialize(serialized)
		if err != nil {
			s.logger.Warn("ignoring context cookie the codec cannot read", zap.String("field", field), zap.Error(err))
			continue
		}
		fields[field] = v
	}
	return fields
}
