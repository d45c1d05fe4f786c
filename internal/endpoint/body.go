package endpoint

import "encoding/json"

// bodyField 请求体中的一个字段；present 为 false 的字段在编码前被过滤掉，
// 因此缺省的可选字段不会以 null 的形式出现在请求体里。
type bodyField struct {
	key     string
	value   any
	present bool
}

type bodyFields []bodyField

// fields 返回过滤后的字段表。
func (f bodyFields) fields() map[string]any {
	out := make(map[string]any, len(f))
	for _, field := range f {
		if !field.present {
			continue
		}
		out[field.key] = field.value
	}
	return out
}

func (f bodyFields) encode() ([]byte, error) {
	return json.Marshal(f.fields())
}

func optionalString(key string, value *string) bodyField {
	if value == nil {
		return bodyField{key: key}
	}
	return bodyField{key: key, value: *value, present: true}
}
