/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package policy

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier checks authorization factors.
type CredentialVerifier interface {
	VerifyPIN(pin string) bool
	VerifyTOTP(code string, at time.Time) bool
}

// Verifier validates a bcrypt-hashed PIN and time-window-tolerant TOTP codes.
type Verifier struct {
	pinHash    string
	totpSecret string
}

// totpSkew tolerates clock drift of ±2 periods around the submission time.
const totpSkew = 2

// NewVerifier builds a verifier from a bcrypt PIN hash and a base32 TOTP
// secret. Either may be empty when the corresponding factor is never
// required by policy.
func NewVerifier(pinHash, totpSecret string) *Verifier {
	return &Verifier{pinHash: pinHash, totpSecret: totpSecret}
}

// VerifyPIN compares the PIN against the stored hash. bcrypt comparison is
// constant time with respect to the candidate.
func (v *Verifier) VerifyPIN(pin string) bool {
	if v.pinHash == "" || pin == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(v.pinHash), []byte(pin)) == nil
}

// VerifyTOTP validates a one-time code at the given time.
func (v *Verifier) VerifyTOTP(code string, at time.Time) bool {
	if v.totpSecret == "" || code == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, v.totpSecret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})

	return err == nil && ok
}

// HashPIN produces a bcrypt hash suitable for config storage.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}
