package otel

import "go.opentelemetry.io/otel/attribute"

// Standard attribute keys for Exoplanet Explorer services.
const (
	AttrRunID       = "run.id"
	AttrBranchIndex = "branch.index"
	AttrClientID    = "client.id"
	AttrModelType   = "ml.model_type"
	AttrLLMModel    = "llm.model"
	AttrLLMProvider = "llm.provider"
	AttrMission     = "nasa.mission"
	AttrTargetID    = "nasa.target_id"
	AttrWSMessage   = "ws.message_type"
	AttrWSGroup     = "ws.group"
	AttrS3Bucket    = "s3.bucket"
	AttrS3Key       = "s3.key"
	AttrCacheHit    = "cache.hit"
)

func RunID(id string) attribute.KeyValue        { return attribute.String(AttrRunID, id) }
func BranchIndex(i int) attribute.KeyValue      { return attribute.Int(AttrBranchIndex, i) }
func ClientID(id string) attribute.KeyValue     { return attribute.String(AttrClientID, id) }
func ModelType(t string) attribute.KeyValue     { return attribute.String(AttrModelType, t) }
func LLMModel(m string) attribute.KeyValue      { return attribute.String(AttrLLMModel, m) }
func LLMProvider(p string) attribute.KeyValue   { return attribute.String(AttrLLMProvider, p) }
func Mission(m string) attribute.KeyValue       { return attribute.String(AttrMission, m) }
func TargetID(id string) attribute.KeyValue     { return attribute.String(AttrTargetID, id) }
func WSMessageType(t string) attribute.KeyValue { return attribute.String(AttrWSMessage, t) }
func WSGroup(g string) attribute.KeyValue       { return attribute.String(AttrWSGroup, g) }
func S3Bucket(b string) attribute.KeyValue      { return attribute.String(AttrS3Bucket, b) }
func S3Key(k string) attribute.KeyValue         { return attribute.String(AttrS3Key, k) }
func CacheHit(hit bool) attribute.KeyValue      { return attribute.Bool(AttrCacheHit, hit) }
