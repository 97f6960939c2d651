package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	ordersig "github.com/exchangev2/ordersig"
	"github.com/exchangev2/ordersig/mechanisms/evm"
	"github.com/exchangev2/ordersig/mechanisms/evm/order"
	"github.com/exchangev2/ordersig/types"
)

const (
	reasonInvalidRequest = "invalid_request"
	reasonMissingDomain  = "missing_domain"
	reasonInvalidDoc     = "invalid_document"
)

var errMissingDomain = errors.New("request has no domain and no default domain is configured")

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Field   string `json:"field,omitempty"`
}

// TypeInfo describes one registered record type
type TypeInfo struct {
	Name        string               `json:"name"`
	Fields      []evm.TypedDataField `json:"fields"`
	EncodedType string               `json:"encodedType"`
	TypeHash    common.Hash          `json:"typeHash"`
}

// TypedMessageRequest is a message of a registered type under a domain
type TypedMessageRequest struct {
	Domain      map[string]interface{} `json:"domain"`
	PrimaryType string                 `json:"primaryType"`
	Message     map[string]interface{} `json:"message"`
}

// DigestResponse carries the parts of a digest and the document to sign
type DigestResponse struct {
	DomainSeparator common.Hash      `json:"domainSeparator"`
	StructHash      common.Hash      `json:"structHash"`
	Digest          common.Hash      `json:"digest"`
	TypedData       *types.TypedData `json:"typedData"`
}

// VerifyRequest asks whether signer produced signature over a message
type VerifyRequest struct {
	TypedMessageRequest
	Signature hexutil.Bytes  `json:"signature"`
	Signer    common.Address `json:"signer"`
}

// VerifyResponse is the outcome of a signature check
type VerifyResponse struct {
	Valid     bool            `json:"valid"`
	Digest    common.Hash     `json:"digest"`
	Recovered *common.Address `json:"recovered,omitempty"`
}

// RecoverRequest carries a self-describing typed-data document and a signature
type RecoverRequest struct {
	TypedData json.RawMessage `json:"typedData"`
	Signature hexutil.Bytes   `json:"signature"`
}

// RecoverResponse names the account that signed a document
type RecoverResponse struct {
	Digest common.Hash    `json:"digest"`
	Signer common.Address `json:"signer"`
}

// ValidateOrderRequest carries a signed order and optionally its domain
type ValidateOrderRequest struct {
	Domain    map[string]interface{} `json:"domain"`
	Order     order.Order            `json:"order"`
	Signature hexutil.Bytes          `json:"signature"`
}

// ValidateOrderResponse describes a valid order
type ValidateOrderResponse struct {
	Valid     bool           `json:"valid"`
	OrderHash common.Hash    `json:"orderHash"`
	Digest    common.Hash    `json:"digest"`
	Signer    common.Address `json:"signer"`
}

// decodeJSON decodes the request body keeping integers as json.Number
func decodeJSON(c *gin.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	resp := ErrorResponse{Error: reasonInvalidRequest, Message: err.Error()}

	var verr *ordersig.VerifyError
	var tde *evm.TypedDataError
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Reason
	case errors.As(err, &tde):
		resp.Error = tde.Reason
		resp.Type = tde.TypeName
		resp.Field = tde.Field
	case errors.Is(err, types.ErrInvalidDocument):
		resp.Error = reasonInvalidDoc
	case errors.Is(err, errMissingDomain):
		resp.Error = reasonMissingDomain
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func (s *Server) resolveDomain(m map[string]interface{}) (evm.TypedDataDomain, error) {
	if m == nil {
		if s.domain == nil {
			return evm.TypedDataDomain{}, errMissingDomain
		}
		return *s.domain, nil
	}
	return types.DomainFromMap(m)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": ordersig.Version})
}

func (s *Server) listTypes(c *gin.Context) {
	reg := s.engine.Registry()
	names := reg.Names()

	out := make([]TypeInfo, 0, len(names))
	for _, name := range names {
		fields, err := reg.Resolve(name)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		encoded, err := reg.EncodeType(name)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		hash, err := reg.TypeHash(name)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		out = append(out, TypeInfo{Name: name, Fields: fields, EncodedType: encoded, TypeHash: hash})
	}
	c.JSON(http.StatusOK, gin.H{"types": out})
}

func (s *Server) digest(c *gin.Context) {
	var req TypedMessageRequest
	if err := decodeJSON(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	domain, err := s.resolveDomain(req.Domain)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	domainSep, err := s.engine.DomainSeparator(domain)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	structHash, err := s.engine.StructHash(req.PrimaryType, req.Message)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	doc, err := types.NewTypedData(s.engine.Registry(), domain, req.PrimaryType, req.Message)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	s.metrics.digests.WithLabelValues(req.PrimaryType).Inc()
	c.JSON(http.StatusOK, DigestResponse{
		DomainSeparator: domainSep,
		StructHash:      structHash,
		Digest:          evm.TypedDataDigest(domainSep, structHash),
		TypedData:       doc,
	})
}

func (s *Server) verify(c *gin.Context) {
	var req VerifyRequest
	if err := decodeJSON(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	domain, err := s.resolveDomain(req.Domain)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	sig, err := evm.SignatureFromBytes(req.Signature)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	digest, err := s.engine.ComputeDigest(domain, req.PrimaryType, req.Message)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	s.metrics.digests.WithLabelValues(req.PrimaryType).Inc()

	resp := VerifyResponse{
		Valid:  s.engine.VerifySignature(digest, sig, req.Signer),
		Digest: digest,
	}
	if recovered, err := s.engine.Recover(digest, sig); err == nil {
		resp.Recovered = &recovered
	}

	outcome := "invalid"
	if resp.Valid {
		outcome = "valid"
	}
	s.metrics.verifications.WithLabelValues("signature", outcome).Inc()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) recoverTypedData(c *gin.Context) {
	var req RecoverRequest
	if err := decodeJSON(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	doc, err := types.ParseTypedData(req.TypedData)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	digest, err := doc.Digest()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	sig, err := evm.SignatureFromBytes(req.Signature)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	signer, err := s.engine.Recover(digest, sig)
	if err != nil {
		s.metrics.verifications.WithLabelValues("recover", "invalid").Inc()
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	s.metrics.verifications.WithLabelValues("recover", "valid").Inc()
	c.JSON(http.StatusOK, RecoverResponse{Digest: digest, Signer: signer})
}

func (s *Server) validateOrder(c *gin.Context) {
	var req ValidateOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	domain, err := s.resolveDomain(req.Domain)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	// contract makers need ledger calls
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := s.validator.Validate(ctx, domain, order.SignedOrder{
		Order:     req.Order,
		Signature: req.Signature,
	})
	if err != nil {
		outcome := "error"
		var verr *ordersig.VerifyError
		if errors.As(err, &verr) {
			outcome = verr.Reason
		}
		s.metrics.verifications.WithLabelValues("order", outcome).Inc()
		s.fail(c, http.StatusUnprocessableEntity, err)
		return
	}

	s.metrics.verifications.WithLabelValues("order", "valid").Inc()
	c.JSON(http.StatusOK, ValidateOrderResponse{
		Valid:     true,
		OrderHash: result.OrderHash,
		Digest:    result.Digest,
		Signer:    result.Signer,
	})
}
