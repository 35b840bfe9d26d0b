package receipt

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Provider describes a credit provider as served by the LMS.
type Provider struct {
	ID                      string `json:"id"`
	DisplayName             string `json:"display_name"`
	URL                     string `json:"url"`
	StatusURL               string `json:"status_url"`
	Description             string `json:"description"`
	EnableIntegration       bool   `json:"enable_integration"`
	FulfillmentInstructions string `json:"fulfillment_instructions"`
	ThumbnailURL            string `json:"thumbnail_url"`
}

// CreditRequest asks a provider to grant credit for a course.
type CreditRequest struct {
	ProviderID string `json:"-"`
	CourseKey  string `json:"course_key"`
	Username   string `json:"username"`
}

// Validate checks that every field of the request is set.
func (r CreditRequest) Validate() error {
	switch {
	case r.ProviderID == "":
		return errors.New("provider id is required")
	case r.CourseKey == "":
		return errors.New("course key is required")
	case r.Username == "":
		return errors.New("username is required")
	}
	return nil
}

// Encode writes the request body.
func (r CreditRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("course_key")
	e.Str(r.CourseKey)
	e.FieldStart("username")
	e.Str(r.Username)
	e.ObjEnd()
}

// CreditResponse is the provider endpoint the browser must post to.
type CreditResponse struct {
	URL        string
	Parameters map[string]string
}

// Decode reads a credit request response. Parameters that are not strings
// keep their JSON text.
func (r *CreditResponse) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "url":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "url")
			}
			r.URL = s
		case "parameters":
			r.Parameters = map[string]string{}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				name := string(key)
				if d.Next() == jx.String {
					s, err := d.Str()
					if err != nil {
						return errors.Wrapf(err, "parameter %q", name)
					}
					r.Parameters[name] = s
					return nil
				}
				raw, err := d.Raw()
				if err != nil {
					return errors.Wrapf(err, "parameter %q", name)
				}
				r.Parameters[name] = raw.String()
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
}

// FormField is one hidden field of an auto-submitted form.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Form is an auto-submitted form the browser posts to the provider.
type Form struct {
	Action        string      `json:"action"`
	Method        string      `json:"method"`
	AcceptCharset string      `json:"accept_charset"`
	Fields        []FormField `json:"fields"`
}

// NewForm turns a credit response into a form with fields sorted by name.
func NewForm(resp CreditResponse) Form {
	f := Form{
		Action:        resp.URL,
		Method:        "POST",
		AcceptCharset: "UTF-8",
		Fields:        make([]FormField, 0, len(resp.Parameters)),
	}
	for k, v := range resp.Parameters {
		f.Fields = append(f.Fields, FormField{Name: k, Value: v})
	}
	slices.SortFunc(f.Fields, func(a, b FormField) int {
		return strings.Compare(a.Name, b.Name)
	})
	return f
}
