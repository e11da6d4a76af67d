package storage

import (
	"time"

	"github.com/bytedance/sonic"

	"tasksync/domain"
)

// storedDoc is the JSON form used by the Redis adapters. JSON has no
// timestamp type, so time values travel separately and come back as
// time.Time rather than strings.
type storedDoc struct {
	ID      string            `json:"id,omitempty"`
	Version string            `json:"version,omitempty"`
	Fields  map[string]any    `json:"fields"`
	Times   map[string]string `json:"times,omitempty"`
}

func toStored(d Document) storedDoc {
	s := storedDoc{ID: d.ID, Version: d.Version, Fields: make(map[string]any, len(d.Fields))}
	for k, v := range d.Fields {
		var ts *time.Time
		switch t := v.(type) {
		case time.Time:
			ts = &t
		case *time.Time:
			if t == nil {
				s.Fields[k] = nil
				continue
			}
			ts = t
		}
		if ts == nil {
			s.Fields[k] = v
			continue
		}
		if s.Times == nil {
			s.Times = make(map[string]string)
		}
		s.Times[k] = ts.UTC().Format(time.RFC3339Nano)
	}
	return s
}

func (s storedDoc) document() Document {
	fields := make(domain.Fields, len(s.Fields)+len(s.Times))
	for k, v := range s.Fields {
		fields[k] = v
	}
	for k, v := range s.Times {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			fields[k] = ts
		} else {
			fields[k] = v
		}
	}
	return Document{ID: s.ID, Version: s.Version, Fields: fields}
}

func encodeFields(fields domain.Fields) ([]byte, error) {
	return sonic.Marshal(toStored(Document{Fields: fields}))
}

func decodeFields(data []byte) (domain.Fields, error) {
	var s storedDoc
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.document().Fields, nil
}

func encodeDocuments(docs []Document) ([]byte, error) {
	out := make([]storedDoc, len(docs))
	for i, d := range docs {
		out[i] = toStored(d)
	}
	return sonic.Marshal(out)
}

func decodeDocuments(data []byte) ([]Document, error) {
	var in []storedDoc
	if err := sonic.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	docs := make([]Document, len(in))
	for i, s := range in {
		docs[i] = s.document()
	}
	return docs, nil
}
