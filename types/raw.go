package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/exchangev2/ordersig/mechanisms/evm"
)

// typedDataSchema is the JSON schema of an eth_signTypedData_v4 document
const typedDataSchema = `{
	"type": "object",
	"required": ["types", "primaryType", "domain", "message"],
	"properties": {
		"types": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["name", "type"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"type": {"type": "string", "minLength": 1}
					},
					"additionalProperties": false
				}
			}
		},
		"primaryType": {"type": "string", "minLength": 1},
		"domain": {
			"type": "object",
			"required": ["name", "version", "chainId", "verifyingContract"],
			"properties": {
				"name": {"type": "string"},
				"version": {"type": "string"},
				"chainId": {"type": ["string", "integer"]},
				"verifyingContract": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"}
			},
			"additionalProperties": false
		},
		"message": {"type": "object"}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func documentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(typedDataSchema))
	})
	return compiledSchema, schemaErr
}

// validateDocument checks data against typedDataSchema and reports every
// violation in one error
func validateDocument(data []byte) error {
	schema, err := documentSchema()
	if err != nil {
		return fmt.Errorf("failed to compile typed data schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return nil
}

// rawTypedData is the document as decoded, before the domain is converted
type rawTypedData struct {
	Types       map[string][]evm.TypedDataField `json:"types"`
	PrimaryType string                          `json:"primaryType"`
	Domain      map[string]interface{}          `json:"domain"`
	Message     map[string]interface{}          `json:"message"`
}

func decodeRaw(data []byte) (*rawTypedData, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawTypedData
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &raw, nil
}

// DomainFromMap converts a decoded domain object. The object must carry
// exactly the four EIP712Domain fields. chainId may be a JSON number or a
// decimal or hex string.
func DomainFromMap(m map[string]interface{}) (evm.TypedDataDomain, error) {
	if extra := undeclaredDomainKeys(m); len(extra) > 0 {
		return evm.TypedDataDomain{}, domainError(evm.ReasonFieldMismatch, extra[0], errors.New("field is not declared"))
	}
	for _, f := range evm.DomainFields {
		if _, ok := m[f.Name]; !ok {
			return evm.TypedDataDomain{}, domainError(evm.ReasonFieldMismatch, f.Name, errors.New("missing value"))
		}
	}

	name, ok := m["name"].(string)
	if !ok {
		return evm.TypedDataDomain{}, domainError(evm.ReasonInvalidValue, "name", fmt.Errorf("expected string, got %T", m["name"]))
	}
	version, ok := m["version"].(string)
	if !ok {
		return evm.TypedDataDomain{}, domainError(evm.ReasonInvalidValue, "version", fmt.Errorf("expected string, got %T", m["version"]))
	}

	chainID, err := evm.ToBigInt(m["chainId"])
	if err != nil {
		return evm.TypedDataDomain{}, locateDomain(err, "chainId")
	}
	if chainID.Sign() < 0 || chainID.BitLen() > 256 {
		return evm.TypedDataDomain{}, domainError(evm.ReasonWidthMismatch, "chainId", fmt.Errorf("%s out of range for uint256", chainID))
	}

	contract, err := evm.ToAddress(m["verifyingContract"])
	if err != nil {
		return evm.TypedDataDomain{}, locateDomain(err, "verifyingContract")
	}

	return evm.TypedDataDomain{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: contract,
	}, nil
}

func undeclaredDomainKeys(m map[string]interface{}) []string {
	var extra []string
	for key := range m {
		declared := false
		for _, f := range evm.DomainFields {
			if f.Name == key {
				declared = true
				break
			}
		}
		if !declared {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return extra
}

func domainError(reason, field string, err error) error {
	return &evm.TypedDataError{Reason: reason, TypeName: evm.DomainTypeName, Field: field, Err: err}
}

// locateDomain places a value conversion error on a domain field
func locateDomain(err error, field string) error {
	var tde *evm.TypedDataError
	if errors.As(err, &tde) && tde.TypeName == "" {
		tde.TypeName = evm.DomainTypeName
		tde.Field = field
		return tde
	}
	return fmt.Errorf("domain.%s: %w", field, err)
}
