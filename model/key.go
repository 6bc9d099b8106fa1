package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sfallmann/conf-central/codec"
)

const (
	KindProfile    = "Profile"
	KindConference = "Conference"
	KindSession    = "Session"
)

// ErrInvalidKey is returned by DecodeKey for strings that are not websafe keys.
var ErrInvalidKey = errors.New("invalid websafe key")

// Key identifies an entity by kind and id inside its ancestor chain. Exactly one
// of IntID and StringID is set on a complete key.
type Key struct {
	Kind     string
	IntID    int64
	StringID string
	Parent   *Key
}

// keyElem is one (kind, id, name) step of an encoded key path.
type keyElem struct {
	_    struct{} `cbor:",toarray"`
	Kind string
	ID   int64
	Name string
}

func NewKey(kind, name string, parent *Key) *Key {
	return &Key{Kind: kind, StringID: name, Parent: parent}
}

func NewIDKey(kind string, id int64, parent *Key) *Key {
	return &Key{Kind: kind, IntID: id, Parent: parent}
}

// ProfileKey is the root key of every entity a user owns.
func ProfileKey(userID string) *Key {
	return NewKey(KindProfile, userID, nil)
}

// Incomplete reports whether the key still lacks an id.
func (k *Key) Incomplete() bool {
	return k.IntID == 0 && k.StringID == ""
}

// Root returns the entity-group root of the key.
func (k *Key) Root() *Key {
	for k.Parent != nil {
		k = k.Parent
	}
	return k
}

// Ancestors returns the key's chain from the root down to and including k.
func (k *Key) Ancestors() []*Key {
	var chain []*Key
	for cur := k; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// HasAncestor reports whether a is k or one of k's parents.
func (k *Key) HasAncestor(a *Key) bool {
	for cur := k; cur != nil; cur = cur.Parent {
		if cur.Equal(a) {
			return true
		}
	}
	return false
}

func (k *Key) Equal(o *Key) bool {
	for k != nil && o != nil {
		if k.Kind != o.Kind || k.IntID != o.IntID || k.StringID != o.StringID {
			return false
		}
		k, o = k.Parent, o.Parent
	}
	return k == nil && o == nil
}

// ID returns the key's id as a string, whichever form it has.
func (k *Key) ID() string {
	if k.StringID != "" {
		return k.StringID
	}
	return strconv.FormatInt(k.IntID, 10)
}

// String renders the key path for logs, e.g. Profile:alice/Conference:12.
func (k *Key) String() string {
	var parts []string
	for _, a := range k.Ancestors() {
		parts = append(parts, a.Kind+":"+a.ID())
	}
	return strings.Join(parts, "/")
}

// Encode returns the websafe form of the key. Equal keys always encode to the
// same string.
func (k *Key) Encode() string {
	chain := k.Ancestors()
	path := make([]keyElem, 0, len(chain))
	for _, a := range chain {
		path = append(path, keyElem{Kind: a.Kind, ID: a.IntID, Name: a.StringID})
	}
	b, err := codec.Marshal(path)
	if err != nil {
		// a slice of fixed-shape structs cannot fail to encode
		panic("model: encode key: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeKey parses a websafe key produced by Encode. Padded input is accepted.
func DecodeKey(s string) (*Key, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	var path []keyElem
	if err := codec.Unmarshal(b, &path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidKey)
	}

	var key *Key
	for _, e := range path {
		if e.Kind == "" {
			return nil, fmt.Errorf("%w: missing kind", ErrInvalidKey)
		}
		if (e.ID == 0) == (e.Name == "") || e.ID < 0 {
			return nil, fmt.Errorf("%w: %s needs exactly one id", ErrInvalidKey, e.Kind)
		}
		key = &Key{Kind: e.Kind, IntID: e.ID, StringID: e.Name, Parent: key}
	}
	return key, nil
}
