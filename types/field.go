package types

import (
	"time"
)

// FieldValue is one plaintext scalar field of a student record together with
// its classification tier. A zero Tier means "use the call's default tier".
type FieldValue struct {
	Value string
	Tier  ClassificationTier
}

// Record is a plaintext student record: field name to value. Insertion order
// is irrelevant.
type Record map[string]FieldValue

// EncryptedField is the at-rest form of a single field. The Region is the
// region that applied at encryption time; it is a historical fact and is
// never re-derived. Decryption always re-validates against the current
// region configuration instead.
type EncryptedField struct {
	Ciphertext  string             `json:"ciphertext" bson:"ciphertext"` // Base64 encoded
	Nonce       string             `json:"nonce" bson:"nonce"`           // Base64 encoded
	KeyVersion  uint32             `json:"keyVersion" bson:"keyVersion"`
	Tier        ClassificationTier `json:"tier" bson:"tier"`
	EncryptedAt time.Time          `json:"encryptedAt" bson:"encryptedAt"`
	Region      string             `json:"region" bson:"region"`
}

// EncryptedRecord maps field names to their encrypted form. Records are
// immutable: updating a field produces a fresh EncryptedField via WithField,
// never an in-place mutation.
type EncryptedRecord struct {
	Fields map[string]EncryptedField `json:"fields" bson:"fields"`
}

// OverallTier returns the highest classification tier among the record's
// fields, or TierPublic for an empty record.
func (r *EncryptedRecord) OverallTier() ClassificationTier {
	tier := TierPublic
	for _, f := range r.Fields {
		if f.Tier > tier {
			tier = f.Tier
		}
	}
	return tier
}

// FieldNames returns the names of all fields in the record. Names are not
// sensitive; values always are.
func (r *EncryptedRecord) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	return names
}

// WithField returns a copy of the record with the named field replaced.
// The receiver is left untouched.
func (r *EncryptedRecord) WithField(name string, field EncryptedField) *EncryptedRecord {
	fields := make(map[string]EncryptedField, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[name] = field
	return &EncryptedRecord{Fields: fields}
}

// AccessDecision records the outcome of one per-field authorization check.
type AccessDecision struct {
	Field   string             `json:"field" bson:"field"`
	Tier    ClassificationTier `json:"tier" bson:"tier"`
	Role    Role               `json:"role" bson:"role"`
	Allowed bool               `json:"allowed" bson:"allowed"`
}
