package wire

import (
	"encoding/json"
	"fmt"
	"math/big"

	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
)

// Opt is an optional field encoded as a zero-or-one-element sequence,
// the registry's representation for absent values.
type Opt[T any] struct {
	value T
	set   bool
}

// Some wraps a present value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// None returns an absent optional.
func None[T any]() Opt[T] {
	return Opt[T]{}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSome reports whether the optional holds a value.
func (o Opt[T]) IsSome() bool {
	return o.set
}

// MarshalJSON encodes the optional as [] or [value].
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("[]"), nil
	}
	return json.Marshal([1]T{o.value})
}

// UnmarshalJSON decodes [] or [value]; longer sequences are rejected.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return decodeError("optional is not a sequence", err)
	}
	switch len(raw) {
	case 0:
		*o = Opt[T]{}
		return nil
	case 1:
		var v T
		if err := json.Unmarshal(raw[0], &v); err != nil {
			return decodeError("optional element", err)
		}
		*o = Opt[T]{value: v, set: true}
		return nil
	default:
		return decodeError(fmt.Sprintf("optional holds %d elements", len(raw)), nil)
	}
}

// Nat is an arbitrary-precision natural number. The registry encodes
// share counts and token ids as bignums; Nat decodes them strictly and
// converts to uint64 only when the value fits.
type Nat struct {
	value big.Int
}

// NatFromUint64 builds a Nat from a uint64.
func NatFromUint64(v uint64) Nat {
	var n Nat
	n.value.SetUint64(v)
	return n
}

// Uint64 converts the Nat to uint64, failing with REMOTE_DECODE when the
// value does not fit rather than truncating.
func (n Nat) Uint64() (uint64, error) {
	if !n.value.IsUint64() {
		return 0, apperrors.WithMetadata(apperrors.CodeRemoteDecode,
			"natural exceeds uint64 range",
			map[string]string{"Value": n.value.String()})
	}
	return n.value.Uint64(), nil
}

// String returns the decimal representation.
func (n Nat) String() string {
	return n.value.String()
}

// MarshalJSON encodes the Nat as a JSON number string-safe form.
func (n Nat) MarshalJSON() ([]byte, error) {
	return []byte(n.value.String()), nil
}

// UnmarshalJSON accepts a JSON number (including bignums) or a decimal
// string; negatives are rejected.
func (n *Nat) UnmarshalJSON(data []byte) error {
	text := string(data)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	value, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return decodeError(fmt.Sprintf("%q is not a natural", text), nil)
	}
	if value.Sign() < 0 {
		return decodeError(fmt.Sprintf("natural %q is negative", text), nil)
	}
	n.value.Set(value)
	return nil
}

// Result is the registry's tagged-union call result: {"ok": T} or
// {"err": E}. Exactly one arm must be present.
type Result[T any] struct {
	ok    T
	errV  string
	isOK  bool
	isErr bool
}

// Ok returns the success value and whether the result is the ok arm.
func (r Result[T]) Ok() (T, bool) {
	return r.ok, r.isOK
}

// Err returns the error payload and whether the result is the err arm.
func (r Result[T]) Err() (string, bool) {
	return r.errV, r.isErr
}

// MarshalJSON encodes the populated arm.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.isOK {
		return json.Marshal(map[string]T{"ok": r.ok})
	}
	return json.Marshal(map[string]string{"err": r.errV})
}

// UnmarshalJSON decodes the tagged union, rejecting payloads with both
// or neither arm.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ok  *json.RawMessage `json:"ok"`
		Err *string          `json:"err"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return decodeError("result is not an object", err)
	}
	switch {
	case raw.Ok != nil && raw.Err != nil:
		return decodeError("result holds both ok and err", nil)
	case raw.Ok != nil:
		var v T
		if err := json.Unmarshal(*raw.Ok, &v); err != nil {
			return decodeError("result ok arm", err)
		}
		*r = Result[T]{ok: v, isOK: true}
		return nil
	case raw.Err != nil:
		*r = Result[T]{errV: *raw.Err, isErr: true}
		return nil
	default:
		return decodeError("result holds neither ok nor err", nil)
	}
}

// OkResult builds a success result (used by tests and fakes).
func OkResult[T any](v T) Result[T] {
	return Result[T]{ok: v, isOK: true}
}

// ErrResult builds an error result (used by tests and fakes).
func ErrResult[T any](message string) Result[T] {
	return Result[T]{errV: message, isErr: true}
}

// Account identifies a shareholder: a principal plus optional subaccount.
type Account struct {
	Owner      string      `json:"owner"`
	Subaccount Opt[string] `json:"subaccount"`
}

func decodeError(message string, cause error) error {
	if cause == nil {
		return apperrors.New(apperrors.CodeRemoteDecode, "decode registry payload: "+message)
	}
	return apperrors.Wrap(apperrors.CodeRemoteDecode, "decode registry payload: "+message, cause)
}
