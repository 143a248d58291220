package extchannel

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/HimbeerserverDE/srp"
)

// AdminUser is the SRP identity every admin logs in as
const AdminUser = "admin"

const adminVerifierKey = "auth:admin"

var ErrNoAdminVerifier = errors.New("admin login is disabled")

// encodeVerifierAndSalt encodes SRP verifier and salt into DB-ready string
func encodeVerifierAndSalt(s, v []byte) string {
	return base64.StdEncoding.EncodeToString(s) + "#" + base64.StdEncoding.EncodeToString(v)
}

// decodeVerifierAndSalt decodes DB-ready string into SRP verifier and salt
func decodeVerifierAndSalt(src string) ([]byte, []byte, error) {
	parts := strings.Split(src, "#")
	if len(parts) != 2 {
		return nil, nil, errors.New("malformed verifier")
	}

	s, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, err
	}

	v, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, err
	}

	return s, v, nil
}

// AdminVerifier returns the salt and verifier admins prove their password against.
// A non-empty password replaces the stored verifier,
// an empty one falls back to it.
func AdminVerifier(st *Storage, password string) (s, v []byte, err error) {
	if password != "" {
		s, v, err = srp.NewClient([]byte(AdminUser), []byte(password))
		if err != nil {
			return nil, nil, err
		}

		if err := st.SetKey(adminVerifierKey, encodeVerifierAndSalt(s, v)); err != nil {
			return nil, nil, err
		}
		return s, v, nil
	}

	stored, err := st.Key(adminVerifierKey)
	if err != nil {
		return nil, nil, err
	}
	if stored == "" {
		return nil, nil, ErrNoAdminVerifier
	}

	return decodeVerifierAndSalt(stored)
}

// adminLogin is the server half of one SRP exchange
type adminLogin struct {
	s, A, B, K []byte
}

// begin answers SRP bytes A with the salt and B
func (al *adminLogin) begin(s, v, A []byte) (B []byte, err error) {
	B, _, K, err := srp.Handshake(A, v)
	if err != nil {
		return nil, err
	}

	al.s = s
	al.A = A
	al.B = B
	al.K = K
	return B, nil
}

// finish checks the client proof M
func (al *adminLogin) finish(M []byte) bool {
	if al.K == nil {
		return false
	}

	M2 := srp.CalculateM([]byte(AdminUser), al.s, al.A, al.B, al.K)
	ok := subtle.ConstantTimeCompare(M, M2) == 1

	*al = adminLogin{}
	return ok
}

// clientLogin is the client half of one SRP exchange
type clientLogin struct {
	password []byte
	A, a     []byte
}

func (cl *clientLogin) begin(password string) ([]byte, error) {
	A, a, err := srp.InitiateHandshake()
	if err != nil {
		return nil, err
	}

	cl.password = []byte(password)
	cl.A = A
	cl.a = a
	return A, nil
}

// proof computes M from the salt and B the server sent
func (cl *clientLogin) proof(s, B []byte) ([]byte, error) {
	if cl.a == nil {
		return nil, errors.New("no admin login in progress")
	}

	K, err := srp.CompleteHandshake(cl.A, cl.a, []byte(AdminUser), cl.password, s, B)
	if err != nil {
		return nil, err
	}

	M := srp.CalculateM([]byte(AdminUser), s, cl.A, B, K)
	*cl = clientLogin{}
	return M, nil
}
