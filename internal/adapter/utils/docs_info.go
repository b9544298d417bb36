package utils

//run redis (optional, REDIS_ADDR=localhost:6379)
//docker run -p 6379:6379 -d redis

//run milvus standalone
//curl -sfL https://raw.githubusercontent.com/milvus-io/milvus/master/scripts/standalone_embed.sh -o standalone_embed.sh && bash standalone_embed.sh start

//qdrant instead of milvus (VECTOR_STORE=qdrant)
//docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant

//no vector server at all (VECTOR_STORE=chromem, CHROMEM_PATH=./data/vectors)

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
