package model

import (
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// Document 是可以写入 Elasticsearch 的文档
type Document interface {
	*StateDoc
	GetID() string
	GetIndex() string
	GetTypeMapping() *types.TypeMapping
}

// StateDoc 保存一个持久化键值对,Value 为 JSON 文本
type StateDoc struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`

	index string
}

func NewStateDoc(index, key string, value []byte) *StateDoc {
	return &StateDoc{Key: key, Value: string(value), UpdatedAt: time.Now(), index: index}
}

func (d *StateDoc) GetID() string {
	return d.Key
}

func (d *StateDoc) GetIndex() string {
	if d == nil || d.index == "" {
		return "smart_bills_state"
	}
	return d.index
}

func (d *StateDoc) SetIndex(index string) {
	d.index = index
}

// value 只存不查,关闭索引
func (d *StateDoc) GetTypeMapping() *types.TypeMapping {
	valueProp := types.NewTextProperty()
	indexed := false
	valueProp.Index = &indexed
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"key":        types.NewKeywordProperty(),
			"value":      valueProp,
			"updated_at": types.NewDateProperty(),
		},
	}
}
