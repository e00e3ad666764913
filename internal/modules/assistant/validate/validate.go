package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNoJSONBlock        Reason = "no_json_block"
	ReasonSyntaxError        Reason = "syntax_error"
	ReasonUnknownAction      Reason = "unknown_action"
	ReasonActionNotPermitted Reason = "action_not_permitted"
	ReasonMissingField       Reason = "missing_field"
	ReasonInvalidType        Reason = "invalid_type"
	ReasonInvalidValue       Reason = "invalid_value"
	ReasonInvalidDate        Reason = "invalid_date"
	ReasonDateOrder          Reason = "date_order"
)

type Stage string

const (
	StageReceived        Stage = "received"
	StageParsed          Stage = "parsed"
	StageRepairAttempted Stage = "repair_attempted"
	StageSchemaChecked   Stage = "schema_checked"
	StageValid           Stage = "valid"
	StageRejected        Stage = "rejected"
)

// Result is the terminal outcome of one validation. Rejections are values,
// not errors.
type Result struct {
	State   action.State
	Reason  Reason
	Field   string
	Detail  string
	Request action.Request
	// RepairAttempts is 0 or 1.
	RepairAttempts int
	Stages         []Stage
}

func (r Result) Accepted() bool { return r.State.Dispatchable() }

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks raw model output against the schema of the action it names.
// An empty allowed list permits every action type.
func (val *Validator) Validate(raw string, allowed []action.Type) Result {
	res := Result{
		State:   action.StateUnvalidated,
		Request: action.Request{RawModelOutput: raw, State: action.StateUnvalidated},
		Stages:  []Stage{StageReceived},
	}

	block, ok := extractBlock(raw)
	if !ok {
		return res.reject(ReasonNoJSONBlock, "", "output has no JSON_ONLY block")
	}

	doc, err := decodeObject(block)
	if err != nil {
		res.Stages = append(res.Stages, StageRepairAttempted)
		res.RepairAttempts = 1
		doc, err = decodeObject(repair(block))
		if err != nil {
			return res.reject(ReasonSyntaxError, "", err.Error())
		}
	}
	res.Stages = append(res.Stages, StageParsed)

	rawType, present := doc["action"]
	if !present || rawType == nil {
		return res.reject(ReasonMissingField, "action", "action is required")
	}
	typeStr, ok := rawType.(string)
	if !ok {
		return res.reject(ReasonInvalidType, "action", "action must be a string")
	}
	at := action.Type(strings.ToLower(strings.TrimSpace(typeStr)))
	if !at.Valid() {
		return res.reject(ReasonUnknownAction, "action", fmt.Sprintf("unknown action %q", typeStr))
	}
	res.Request.Type = at
	if len(allowed) > 0 && !action.Contains(allowed, at) {
		return res.reject(ReasonActionNotPermitted, "action", fmt.Sprintf("%s not allowed here", at))
	}

	payload := map[string]any{}
	if rawPayload, present := doc["payload"]; present && rawPayload != nil {
		obj, ok := rawPayload.(map[string]any)
		if !ok {
			return res.reject(ReasonInvalidType, "payload", "payload must be an object")
		}
		payload = normalizeKeys(obj).(map[string]any)
	}

	schema, _ := action.SchemaFor(at)
	if iss := checkFields(schema.Fields, payload, ""); iss != nil {
		return res.reject(iss.reason, iss.field, iss.detail)
	}

	typed := action.NewPayload(at)
	b, err := json.Marshal(payload)
	if err != nil {
		return res.reject(ReasonInvalidType, "payload", err.Error())
	}
	if err := json.Unmarshal(b, typed); err != nil {
		return res.reject(ReasonInvalidType, "payload", err.Error())
	}
	if err := val.v.Struct(typed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			reason := ReasonInvalidValue
			if fe.Tag() == "required" {
				reason = ReasonMissingField
			}
			return res.reject(reason, fieldPath(fe.Namespace()), fmt.Sprintf("failed %s", fe.Tag()))
		}
		return res.reject(ReasonInvalidValue, "payload", err.Error())
	}
	if iss := checkSemantics(typed); iss != nil {
		return res.reject(iss.reason, iss.field, iss.detail)
	}

	res.Stages = append(res.Stages, StageSchemaChecked, StageValid)
	res.State = action.StateValid
	if res.RepairAttempts > 0 {
		res.State = action.StateRepaired
	}
	res.Request.Payload = derefPayload(typed)
	res.Request.State = res.State
	return res
}

func (r Result) reject(reason Reason, field, detail string) Result {
	r.State = action.StateRejected
	r.Reason = reason
	r.Field = field
	r.Detail = detail
	r.Request.State = action.StateRejected
	r.Stages = append(r.Stages, StageRejected)
	return r
}

// decodeObject strictly parses exactly one JSON object.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("not an object")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	return out, nil
}

// fieldPath turns "CreateCoursePayload.modules[0].title" into "modules[0].title".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func derefPayload(p action.Payload) action.Payload {
	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		if out, ok := v.Elem().Interface().(action.Payload); ok {
			return out
		}
	}
	return p
}
