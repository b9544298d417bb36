package config

import (
	"log/slog"
	"time"
)

const (
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//worker pool for on-demand ingestion
	MaxWorkerCount            int64 = 4
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	IngestJobTimeout                = 10 * time.Minute

	//serverTimeouts
	ReadTimeout = 5 * time.Second
	//streamed answers keep the connection open well past a normal response
	WriteTimeout           = 3 * time.Minute
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//chat exchange budget: retrieval + full stream
	ExchangeTimeout  = 2 * time.Minute
	RetrievalTimeout = 15 * time.Second

	//job requests buffer limit
	BufferLimit = 100

	MaxUploadSize = 32 << 20 //32mb

	//vectorDB
	VectorConnectionTimeout = 30 * time.Second
	QdrantUseTLS            = false
	QdrantPoolSize          = 1
	MilvusShardNumber       = 1
	MilvusHNSWM             = 16
	MilvusHNSWEfConstruct   = 200
	MilvusSearchEf          = 64
	MilvusMaxTextLength     = 8192
	MilvusMaxSourceLength   = 512

	//watsonx
	WatsonxRequestTimeout  = 60 * time.Second
	IAMTokenRefreshLeeway  = 60 * time.Second
	WatsonxTruncateTokens  = 512
	WatsonxStreamMaxBuffer = 1 << 20

	//gemini
	GeminiEmbeddingDimensionality int32 = 768

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis has 16 DB we can use
	RedisJobStore     = 0
	RedisSessionStore = 1

	RedisJobStoreTTL = 24 * time.Hour

	QRCodeSize = 300
)
