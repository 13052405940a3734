package cloudevent

import (
	"encoding/base64"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// SpecVersion is the only CloudEvents specification version this format
// understands.
const SpecVersion = "1.0"

// ErrMalformedDocument is returned when a byte payload cannot be
// interpreted as a CloudEvents JSON document.
var ErrMalformedDocument = errors.New("cloudevent: malformed document")

// ErrUnsupportedSpecVersion is returned when a document declares a
// specversion other than "1.0".
var ErrUnsupportedSpecVersion = errors.New("cloudevent: unsupported specversion")

// Format serializes and deserializes Events to and from bytes. The
// default, and only implementation shipped here, is JSON; it is pluggable
// so callers can swap in their own wire representation (spec glossary:
// "Event format").
type Format interface {
	Serialize(event Event) ([]byte, error)
	Deserialize(data []byte) (Event, error)
}

// jsonFormat implements Format using the CloudEvents JSON event format:
// JSON content-typed payloads are embedded directly under "data"; every
// other content type is base64-encoded under "data_base64".
type jsonFormat struct {
	json jsoniter.API
}

// JSON returns the default, fastest-config JSON Format, backed by
// json-iterator for allocation-light (de)serialization.
func JSON() Format {
	return jsonFormat{json: jsoniter.ConfigFastest}
}

const contentTypeJSON = "application/json"

func (f jsonFormat) Serialize(event Event) ([]byte, error) {
	doc := make(map[string]any, 8+len(event.Extensions))

	doc["specversion"] = SpecVersion
	doc["id"] = event.ID
	doc["source"] = event.Source
	doc["type"] = event.Type

	if !event.Time.IsZero() {
		doc["time"] = event.Time.Format(time.RFC3339Nano)
	}

	if event.Subject != "" {
		doc["subject"] = event.Subject
	}

	if event.DataContentType != "" {
		doc["datacontenttype"] = event.DataContentType
	}

	if len(event.Data) > 0 {
		if event.DataContentType == contentTypeJSON && f.json.Valid(event.Data) {
			doc["data"] = jsoniter.RawMessage(event.Data)
		} else {
			doc["data_base64"] = base64.StdEncoding.EncodeToString(event.Data)
		}
	}

	for k, v := range event.Extensions {
		doc[k] = v
	}

	return f.json.Marshal(doc)
}

func (f jsonFormat) Deserialize(data []byte) (Event, error) {
	var doc map[string]jsoniter.RawMessage

	if unmarshalErr := f.json.Unmarshal(data, &doc); unmarshalErr != nil {
		return Event{}, errors.Join(ErrMalformedDocument, unmarshalErr)
	}

	event := Event{}

	if specVersionRaw, ok := doc["specversion"]; ok {
		var specVersion string
		if err := f.json.Unmarshal(specVersionRaw, &specVersion); err != nil {
			return Event{}, errors.Join(ErrMalformedDocument, err)
		}
		if specVersion != SpecVersion {
			return Event{}, ErrUnsupportedSpecVersion
		}
	}

	if err := f.decodeString(doc, "id", &event.ID); err != nil {
		return Event{}, err
	}

	if err := f.decodeString(doc, "source", &event.Source); err != nil {
		return Event{}, err
	}

	if err := f.decodeString(doc, "type", &event.Type); err != nil {
		return Event{}, err
	}

	if err := f.decodeString(doc, "subject", &event.Subject); err != nil {
		return Event{}, err
	}

	if err := f.decodeString(doc, "datacontenttype", &event.DataContentType); err != nil {
		return Event{}, err
	}

	if timeRaw, ok := doc["time"]; ok {
		var timeString string
		if err := f.json.Unmarshal(timeRaw, &timeString); err != nil {
			return Event{}, errors.Join(ErrMalformedDocument, err)
		}

		parsed, parseErr := time.Parse(time.RFC3339Nano, timeString)
		if parseErr != nil {
			return Event{}, errors.Join(ErrMalformedDocument, parseErr)
		}

		event.Time = parsed
	}

	if dataRaw, ok := doc["data"]; ok {
		event.Data = []byte(dataRaw)
	} else if dataB64Raw, ok := doc["data_base64"]; ok {
		var encoded string
		if err := f.json.Unmarshal(dataB64Raw, &encoded); err != nil {
			return Event{}, errors.Join(ErrMalformedDocument, err)
		}

		decoded, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			return Event{}, errors.Join(ErrMalformedDocument, decodeErr)
		}

		event.Data = decoded
	}

	for _, reserved := range []string{
		"specversion", "id", "source", "type", "time", "subject",
		"datacontenttype", "data", "data_base64",
	} {
		delete(doc, reserved)
	}

	if len(doc) > 0 {
		event.Extensions = make(map[string]string, len(doc))

		for k, raw := range doc {
			var value string
			if err := f.json.Unmarshal(raw, &value); err != nil {
				continue // non-string extensions are out of scope for this format
			}

			event.Extensions[k] = value
		}
	}

	return event, nil
}

func (f jsonFormat) decodeString(doc map[string]jsoniter.RawMessage, key string, dest *string) error {
	raw, ok := doc[key]
	if !ok {
		return nil
	}

	if err := f.json.Unmarshal(raw, dest); err != nil {
		return errors.Join(ErrMalformedDocument, err)
	}

	return nil
}
