package main

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

const otpTTL = 10 * time.Minute

// newOTP returns a fresh 6 digit code and its hash.
func newOTP() (string, []byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", nil, fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	return code, hashOTP(code), nil
}

func hashOTP(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

// issueOTP attaches a new code for purpose to u and returns the plain code
// for delivery. The caller persists u.
func issueOTP(u *user, purpose string, now time.Time) (string, error) {
	code, hash, err := newOTP()
	if err != nil {
		return "", err
	}
	expires := now.Add(otpTTL)
	u.OTPHash = hash
	u.OTPExpiresAt = &expires
	u.OTPPurpose = purpose
	return code, nil
}

// checkOTP verifies code against the one stored on u for purpose.
func checkOTP(u *user, purpose, code string, now time.Time) error {
	if len(u.OTPHash) == 0 || u.OTPExpiresAt == nil || u.OTPPurpose != purpose {
		if purpose == otpPurposeReset {
			return errNoResetOTP
		}
		return errInvalidOTP
	}
	if subtle.ConstantTimeCompare(u.OTPHash, hashOTP(code)) != 1 {
		return errInvalidOTP
	}
	if !now.Before(*u.OTPExpiresAt) {
		return errExpiredOTP
	}
	return nil
}

func clearOTP(u *user) {
	u.OTPHash = nil
	u.OTPExpiresAt = nil
	u.OTPPurpose = ""
}
