// Package es 提供与 Elasticsearch 交互的客户端功能，用于在合并后清理搜索索引。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"corpus-dedup/internal/config"
	"corpus-dedup/internal/model"
	"corpus-dedup/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Index 包装了搜索索引，文档以 source 和 source_id 两个 keyword 字段定位。
type Index struct {
	client    *elasticsearch.Client
	indexName string
}

// NewIndex 初始化 Elasticsearch 客户端。
func NewIndex(esCfg config.ElasticsearchConfig) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Index{client: client, indexName: esCfg.IndexName}, nil
}

// buildDeleteQuery 构造按 (source, source_id) 删除的 bool 查询。
func buildDeleteQuery(refs []model.DocumentRef) ([]byte, error) {
	should := make([]map[string]interface{}, 0, len(refs))
	for _, ref := range refs {
		should = append(should, map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"source": ref.Source}},
					{"term": map[string]interface{}{"source_id": ref.SourceID}},
				},
			},
		})
	}
	return json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	})
}

// RemoveDocuments 删除合并中被移除的文档在索引中的所有条目。
func (i *Index) RemoveDocuments(ctx context.Context, refs []model.DocumentRef) error {
	if len(refs) == 0 {
		return nil
	}
	body, err := buildDeleteQuery(refs)
	if err != nil {
		return err
	}

	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:   []string{i.indexName},
		Body:    bytes.NewReader(body),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("从 Elasticsearch 删除文档出错: %s", res.String())
		return errors.New("failed to delete documents from index")
	}
	log.Infof("已从索引 '%s' 删除 %d 篇文档", i.indexName, len(refs))
	return nil
}

// String 便于日志输出。
func (i *Index) String() string {
	return fmt.Sprintf("es(%s)", i.indexName)
}
