package store

import (
	"context"
	"strings"
	"sync"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/matching"
)

var dnRule = matching.DistinguishedNameRule{}

// Store holds entries keyed by normalized DN. A single RWMutex serializes
// mutations against each other and against in-flight searches; reads take
// the shared lock and may overlap.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	schema  Schema
}

// New returns an empty store using schema for value matching. A nil schema
// means every attribute matches under caseIgnoreMatch.
func New(schema Schema) *Store {
	if schema == nil {
		schema = Schema{}
	}
	return &Store{entries: map[string]*Entry{}, schema: schema}
}

// Schema exposes the store's attribute-to-rule bindings.
func (s *Store) Schema() Schema { return s.schema }

func normalizeDN(dn string) (string, error) {
	norm, err := dnRule.Normalize([]byte(dn))
	if err != nil {
		return "", err
	}
	return string(norm), nil
}

// Get returns a deep copy of the entry named by dn, or false when absent.
func (s *Store) Get(dn string) (*Entry, bool) {
	key, err := normalizeDN(dn)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Add creates the entry described by req. The entry must not exist and its
// immediate parent must, unless the DN has no ancestor in the store at all,
// which starts a new naming context.
func (s *Store) Add(ctx context.Context, req *ldap.AddRequest) error {
	if err := ctx.Err(); err != nil {
		return deadlineError(err)
	}
	key, err := normalizeDN(req.DN)
	if err != nil {
		return err
	}
	if key == "" {
		return ldap.NewError(ldap.ResultUnwillingToPerform, "cannot add the root DSE")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return ldap.NewError(ldap.ResultEntryAlreadyExists, "entry %s already exists", req.DN)
	}
	if parent := parentDN(key); parent != "" {
		if _, ok := s.entries[parent]; !ok {
			if matched := s.matchedDNLocked(parent); matched != "" {
				return &ldap.Error{
					Code:      ldap.ResultNoSuchObject,
					MatchedDN: matched,
					Message:   "parent entry does not exist",
				}
			}
		}
	}

	e := &Entry{DN: req.DN}
	for _, a := range req.Attributes {
		e.Attributes = append(e.Attributes, a)
	}
	s.entries[key] = e.Clone()
	return nil
}

// Delete removes a leaf entry.
func (s *Store) Delete(ctx context.Context, dn string) error {
	if err := ctx.Err(); err != nil {
		return deadlineError(err)
	}
	key, err := normalizeDN(dn)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return s.noSuchObjectLocked(key)
	}
	for other := range s.entries {
		if parentDN(other) == key {
			return ldap.NewError(ldap.ResultNotAllowedOnNonLeaf, "entry %s has children", dn)
		}
	}
	delete(s.entries, key)
	return nil
}

// Modify applies req's changes atomically: either every change succeeds and
// the entry is swapped in, or the stored entry is untouched.
func (s *Store) Modify(ctx context.Context, req *ldap.ModifyRequest) error {
	if err := ctx.Err(); err != nil {
		return deadlineError(err)
	}
	key, err := normalizeDN(req.DN)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return s.noSuchObjectLocked(key)
	}

	// Work on a copy so a failing change leaves the entry as it was.
	draft := e.Clone()
	for _, ch := range req.Changes {
		if err := applyChange(draft, ch); err != nil {
			return err
		}
	}
	s.entries[key] = draft
	return nil
}

func applyChange(e *Entry, ch ldap.Modification) error {
	switch ch.Op {
	case ldap.ModAdd:
		for i := range e.Attributes {
			if strings.EqualFold(e.Attributes[i].Type, ch.Attribute.Type) {
				e.Attributes[i].Values = append(e.Attributes[i].Values, ch.Attribute.Values...)
				return nil
			}
		}
		e.Attributes = append(e.Attributes, ch.Attribute)
		return nil

	case ldap.ModDelete:
		for i := range e.Attributes {
			if !strings.EqualFold(e.Attributes[i].Type, ch.Attribute.Type) {
				continue
			}
			if len(ch.Attribute.Values) == 0 {
				e.Attributes = append(e.Attributes[:i], e.Attributes[i+1:]...)
				return nil
			}
			kept := e.Attributes[i].Values[:0]
			for _, v := range e.Attributes[i].Values {
				if !containsValue(ch.Attribute.Values, v) {
					kept = append(kept, v)
				}
			}
			if len(kept) == 0 {
				e.Attributes = append(e.Attributes[:i], e.Attributes[i+1:]...)
			} else {
				e.Attributes[i].Values = kept
			}
			return nil
		}
		return ldap.NewError(ldap.ResultNoSuchAttribute,
			"attribute %s does not exist", ch.Attribute.Type)

	case ldap.ModReplace:
		for i := range e.Attributes {
			if strings.EqualFold(e.Attributes[i].Type, ch.Attribute.Type) {
				if len(ch.Attribute.Values) == 0 {
					e.Attributes = append(e.Attributes[:i], e.Attributes[i+1:]...)
				} else {
					e.Attributes[i].Values = ch.Attribute.Values
				}
				return nil
			}
		}
		if len(ch.Attribute.Values) > 0 {
			e.Attributes = append(e.Attributes, ch.Attribute)
		}
		return nil

	default:
		return ldap.NewError(ldap.ResultProtocolError,
			"unknown modification operation %d", ch.Op)
	}
}

func containsValue(values [][]byte, v []byte) bool {
	for _, have := range values {
		if string(have) == string(v) {
			return true
		}
	}
	return false
}

// ModifyDN renames an entry, optionally moving it under NewSuperior. The
// entry must be a leaf; the target name must be free.
func (s *Store) ModifyDN(ctx context.Context, req *ldap.ModifyDNRequest) error {
	if err := ctx.Err(); err != nil {
		return deadlineError(err)
	}
	key, err := normalizeDN(req.DN)
	if err != nil {
		return err
	}

	superior := parentRaw(req.DN)
	if req.NewSuperior != "" {
		superior = req.NewSuperior
	}
	newDN := req.NewRDN
	if superior != "" {
		newDN = req.NewRDN + "," + superior
	}
	newKey, err := normalizeDN(newDN)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return s.noSuchObjectLocked(key)
	}
	for other := range s.entries {
		if parentDN(other) == key {
			return ldap.NewError(ldap.ResultNotAllowedOnNonLeaf, "entry %s has children", req.DN)
		}
	}
	if _, taken := s.entries[newKey]; taken && newKey != key {
		return ldap.NewError(ldap.ResultEntryAlreadyExists, "entry %s already exists", newDN)
	}
	if parent := parentDN(newKey); parent != "" {
		if _, ok := s.entries[parent]; !ok {
			return &ldap.Error{
				Code:      ldap.ResultNoSuchObject,
				MatchedDN: s.matchedDNLocked(parent),
				Message:   "new superior does not exist",
			}
		}
	}

	moved := e.Clone()
	moved.DN = newDN
	if req.DeleteOldRDN {
		removeRDNValues(moved, req.DN)
	}
	addRDNValues(moved, req.NewRDN)

	delete(s.entries, key)
	s.entries[newKey] = moved
	return nil
}

// Compare tests an attribute value assertion against the stored entry.
func (s *Store) Compare(ctx context.Context, dn, attr string, assertion []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, deadlineError(err)
	}
	key, err := normalizeDN(dn)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return false, s.noSuchObjectLocked(key)
	}
	values := e.Values(attr)
	if values == nil {
		return false, ldap.NewError(ldap.ResultNoSuchAttribute,
			"entry has no attribute %s", attr)
	}

	rule := s.schema.Rule(attr)
	for _, stored := range values {
		ok, err := matching.MatchAssertion(rule, stored, assertion)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Search streams deep copies of matching entries to send, holding the shared
// lock for the duration so mutations cannot interleave. The iteration is
// finite and restartable only by calling Search again.
func (s *Store) Search(ctx context.Context, req *ldap.SearchRequest, send func(*Entry) error) error {
	baseKey, err := normalizeDN(req.BaseDN)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if baseKey != "" {
		if _, ok := s.entries[baseKey]; !ok {
			return s.noSuchObjectLocked(baseKey)
		}
	}

	sent := 0
	for key, e := range s.entries {
		if err := ctx.Err(); err != nil {
			return deadlineError(err)
		}
		if !inScope(baseKey, key, req.Scope) {
			continue
		}
		ok, err := s.matchEntry(e, req.Filter)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if req.SizeLimit > 0 && sent >= req.SizeLimit {
			return ldap.NewError(ldap.ResultSizeLimitExceeded,
				"search exceeded size limit %d", req.SizeLimit)
		}
		if err := send(selectAttributes(e, req)); err != nil {
			return err
		}
		sent++
	}
	return nil
}

// selectAttributes applies the request's attribute selection and typesOnly
// flag to a copy of the entry.
func selectAttributes(e *Entry, req *ldap.SearchRequest) *Entry {
	out := e.Clone()
	if len(req.Attributes) > 0 && !(len(req.Attributes) == 1 && req.Attributes[0] == "*") {
		var kept []ldap.Attribute
		for _, a := range out.Attributes {
			for _, want := range req.Attributes {
				if strings.EqualFold(a.Type, want) {
					kept = append(kept, a)
					break
				}
			}
		}
		out.Attributes = kept
	}
	if req.TypesOnly {
		for i := range out.Attributes {
			out.Attributes[i].Values = nil
		}
	}
	return out
}

func inScope(base, dn string, scope int) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return dn == base
	case ldap.ScopeSingleLevel:
		return parentDN(dn) == base && dn != base
	default: // wholeSubtree
		if base == "" {
			return true
		}
		return dn == base || strings.HasSuffix(dn, ","+base)
	}
}

// parentDN strips the first RDN of a normalized DN.
func parentDN(dn string) string {
	if i := indexUnescapedComma(dn); i >= 0 {
		return dn[i+1:]
	}
	return ""
}

// parentRaw strips the first RDN of a raw (not yet normalized) DN.
func parentRaw(dn string) string {
	if i := indexUnescapedComma(dn); i >= 0 {
		return strings.TrimSpace(dn[i+1:])
	}
	return ""
}

func indexUnescapedComma(dn string) int {
	for i := 0; i < len(dn); i++ {
		switch dn[i] {
		case '\\':
			i++
		case ',':
			return i
		}
	}
	return -1
}

// matchedDNLocked walks up from key to the closest existing ancestor, for
// the matchedDN field of a noSuchObject result.
func (s *Store) matchedDNLocked(key string) string {
	for key != "" {
		if e, ok := s.entries[key]; ok {
			return e.DN
		}
		key = parentDN(key)
	}
	return ""
}

func (s *Store) noSuchObjectLocked(key string) error {
	return &ldap.Error{
		Code:      ldap.ResultNoSuchObject,
		MatchedDN: s.matchedDNLocked(parentDN(key)),
		Message:   "entry does not exist",
	}
}

func deadlineError(err error) error {
	if err == context.DeadlineExceeded {
		return &ldap.Error{Code: ldap.ResultTimeLimitExceeded, Message: "time limit exceeded", Err: err}
	}
	return &ldap.Error{Code: ldap.ResultUnavailable, Message: "operation canceled", Err: err}
}

// removeRDNValues deletes the old RDN's attribute values after a rename.
func removeRDNValues(e *Entry, oldDN string) {
	rdn := oldDN
	if i := indexUnescapedComma(oldDN); i >= 0 {
		rdn = oldDN[:i]
	}
	applyRDN(e, rdn, func(attr string, value []byte) {
		for i := range e.Attributes {
			if !strings.EqualFold(e.Attributes[i].Type, attr) {
				continue
			}
			kept := e.Attributes[i].Values[:0]
			for _, v := range e.Attributes[i].Values {
				if string(v) != string(value) {
					kept = append(kept, v)
				}
			}
			e.Attributes[i].Values = kept
		}
	})
}

// addRDNValues ensures the new RDN's attribute values are present.
func addRDNValues(e *Entry, rdn string) {
	applyRDN(e, rdn, func(attr string, value []byte) {
		for i := range e.Attributes {
			if strings.EqualFold(e.Attributes[i].Type, attr) {
				if !containsValue(e.Attributes[i].Values, value) {
					e.Attributes[i].Values = append(e.Attributes[i].Values, value)
				}
				return
			}
		}
		e.Attributes = append(e.Attributes, ldap.Attribute{Type: attr, Values: [][]byte{value}})
	})
}

// applyRDN invokes fn for each attribute=value pair of a (possibly
// multi-valued) RDN.
func applyRDN(e *Entry, rdn string, fn func(attr string, value []byte)) {
	for _, ava := range strings.Split(rdn, "+") {
		eq := strings.IndexByte(ava, '=')
		if eq < 0 {
			continue
		}
		attr := strings.TrimSpace(ava[:eq])
		value := strings.TrimSpace(ava[eq+1:])
		fn(attr, []byte(value))
	}
}
