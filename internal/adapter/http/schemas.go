package http

import (
	"fmt"
	"time"

	goskema "github.com/reoring/goskema"
	g "github.com/reoring/goskema/dsl"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/request"
)

// overrideBlocksBody is the wire form of override intent. A block is
// requested by the presence of its key, e.g. "patronBlock": {}.
type overrideBlocksBody struct {
	PatronBlock                 map[string]any `json:"patronBlock,omitempty"`
	ItemLimitBlock              map[string]any `json:"itemLimitBlock,omitempty"`
	ItemNotLoanableBlock        map[string]any `json:"itemNotLoanableBlock,omitempty"`
	RenewalBlock                map[string]any `json:"renewalBlock,omitempty"`
	RenewalDueDateRequiredBlock map[string]any `json:"renewalDueDateRequiredBlock,omitempty"`
	Comment                     string         `json:"comment,omitempty"`
}

type checkOutBody struct {
	ItemBarcode      string             `json:"itemBarcode"`
	UserBarcode      string             `json:"userBarcode"`
	ProxyUserBarcode string             `json:"proxyUserBarcode,omitempty"`
	ServicePointID   string             `json:"servicePointId,omitempty"`
	LoanDate         string             `json:"loanDate,omitempty"`
	OverrideBlocks   overrideBlocksBody `json:"overrideBlocks"`
}

type renewBody struct {
	ItemBarcode    string             `json:"itemBarcode"`
	UserBarcode    string             `json:"userBarcode"`
	ServicePointID string             `json:"servicePointId,omitempty"`
	OverrideBlocks overrideBlocksBody `json:"overrideBlocks"`
}

type createRequestBody struct {
	RequesterID          string             `json:"requesterId"`
	ProxyUserID          string             `json:"proxyUserId,omitempty"`
	ItemID               string             `json:"itemId,omitempty"`
	InstanceID           string             `json:"instanceId,omitempty"`
	RequestType          string             `json:"requestType"`
	RequestLevel         string             `json:"requestLevel"`
	PickupServicePointID string             `json:"pickupServicePointId,omitempty"`
	OverrideBlocks       overrideBlocksBody `json:"overrideBlocks"`
}

type moveBody struct {
	DestinationItemID string `json:"destinationItemId"`
	RequestType       string `json:"requestType,omitempty"`
}

func blockField() g.AnyAdapter { return g.SchemaOf[map[string]any](g.MapAny()) }

var overrideBlocksSchema = g.ObjectOf[overrideBlocksBody]().
	Field("patronBlock", blockField()).Optional().
	Field("itemLimitBlock", blockField()).Optional().
	Field("itemNotLoanableBlock", blockField()).Optional().
	Field("renewalBlock", blockField()).Optional().
	Field("renewalDueDateRequiredBlock", blockField()).Optional().
	Field("comment", g.StringOf[string]()).Optional().
	UnknownStrict().
	MustBind()

var checkOutSchema = g.ObjectOf[checkOutBody]().
	Field("itemBarcode", g.StringOf[string]()).Required().
	Field("userBarcode", g.StringOf[string]()).Required().
	Field("proxyUserBarcode", g.StringOf[string]()).Optional().
	Field("servicePointId", g.StringOf[string]()).Optional().
	Field("loanDate", g.StringOf[string]()).Optional().
	Field("overrideBlocks", g.SchemaOf[overrideBlocksBody](overrideBlocksSchema)).Optional().
	UnknownStrip().
	MustBind()

var renewSchema = g.ObjectOf[renewBody]().
	Field("itemBarcode", g.StringOf[string]()).Required().
	Field("userBarcode", g.StringOf[string]()).Required().
	Field("servicePointId", g.StringOf[string]()).Optional().
	Field("overrideBlocks", g.SchemaOf[overrideBlocksBody](overrideBlocksSchema)).Optional().
	UnknownStrip().
	MustBind()

var createRequestSchema = g.ObjectOf[createRequestBody]().
	Field("requesterId", g.StringOf[string]()).Required().
	Field("proxyUserId", g.StringOf[string]()).Optional().
	Field("itemId", g.StringOf[string]()).Optional().
	Field("instanceId", g.StringOf[string]()).Optional().
	Field("requestType", g.StringOf[string]()).Required().
	Field("requestLevel", g.StringOf[string]()).Default(string(request.LevelItem)).
	Field("pickupServicePointId", g.StringOf[string]()).Optional().
	Field("overrideBlocks", g.SchemaOf[overrideBlocksBody](overrideBlocksSchema)).Optional().
	UnknownStrip().
	MustBind()

var moveSchema = g.ObjectOf[moveBody]().
	Field("destinationItemId", g.StringOf[string]()).Required().
	Field("requestType", g.StringOf[string]()).Optional().
	UnknownStrip().
	MustBind()

var reorderEntrySchema = g.ObjectOf[request.ReorderEntry]().
	Field("id", g.StringOf[string]()).Required().
	Field("newPosition", g.IntOf[int]()).Required().
	UnknownStrip().
	MustBind()

var reorderSchema = g.ObjectOf[request.ReorderSubmission]().
	Field("reorderedQueue", g.ArrayOfSchema(g.Array(reorderEntrySchema).Min(1))).Required().
	UnknownStrip().
	MustBind()

// overrides converts the wire form into an override.Request.
func (b overrideBlocksBody) overrides() (override.Request, error) {
	ov := override.Request{Blocks: map[override.Block]bool{}, Comment: b.Comment}
	set := func(block override.Block, body map[string]any) error {
		if body == nil {
			return nil
		}
		ov.Blocks[block] = true
		raw, ok := body["dueDate"]
		if !ok {
			return nil
		}
		s, ok := raw.(string)
		if !ok {
			return invalidDate(string(block)+".dueDate", fmt.Sprint(raw))
		}
		due, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return invalidDate(string(block)+".dueDate", s)
		}
		due = due.UTC()
		ov.DueDate = &due
		return nil
	}
	if err := set(override.BlockPatron, b.PatronBlock); err != nil {
		return ov, err
	}
	if err := set(override.BlockItemLimit, b.ItemLimitBlock); err != nil {
		return ov, err
	}
	if err := set(override.BlockItemNotLoanable, b.ItemNotLoanableBlock); err != nil {
		return ov, err
	}
	if err := set(override.BlockRenewal, b.RenewalBlock); err != nil {
		return ov, err
	}
	if err := set(override.BlockRenewal, b.RenewalDueDateRequiredBlock); err != nil {
		return ov, err
	}
	return ov, nil
}

func (b checkOutBody) toDomain() (loan.CheckOutRequest, error) {
	req := loan.CheckOutRequest{
		ItemBarcode:      b.ItemBarcode,
		UserBarcode:      b.UserBarcode,
		ProxyUserBarcode: b.ProxyUserBarcode,
		ServicePointID:   b.ServicePointID,
	}
	if b.LoanDate != "" {
		t, err := time.Parse(time.RFC3339, b.LoanDate)
		if err != nil {
			return req, invalidDate("loanDate", b.LoanDate)
		}
		req.LoanDate = t.UTC()
	}
	return req, nil
}

func (b renewBody) toDomain() loan.RenewRequest {
	return loan.RenewRequest{
		ItemBarcode:    b.ItemBarcode,
		UserBarcode:    b.UserBarcode,
		ServicePointID: b.ServicePointID,
	}
}

func (b createRequestBody) toDomain() request.CreateRequest {
	return request.CreateRequest{
		RequesterID:          b.RequesterID,
		ProxyUserID:          b.ProxyUserID,
		ItemID:               b.ItemID,
		InstanceID:           b.InstanceID,
		Type:                 request.Type(b.RequestType),
		Level:                request.Level(b.RequestLevel),
		PickupServicePointID: b.PickupServicePointID,
	}
}

func (b moveBody) toDomain() request.MoveRequest {
	return request.MoveRequest{
		DestinationItemID: b.DestinationItemID,
		RequestType:       request.Type(b.RequestType),
	}
}

func invalidDate(key, value string) failure.Validation {
	return failure.WithCode("INVALID_DATE", "Date must be an RFC 3339 timestamp", failure.Param(key, value))
}

// issuesToFailure renders body schema issues in the same shape as rule
// failures. The JSON pointer of the offending field becomes the parameter key.
func issuesToFailure(iss goskema.Issues) failure.Validation {
	out := make(failure.Validation, 0, len(iss))
	for _, is := range iss {
		msg := is.Message
		if msg == "" {
			msg = is.Code
		}
		out = append(out, failure.ValidationError{
			Message:    msg,
			Parameters: []failure.Parameter{failure.Param(is.Path, is.Code)},
			Code:       is.Code,
		})
	}
	return out
}
