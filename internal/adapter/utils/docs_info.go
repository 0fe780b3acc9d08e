package utils

// local dependencies
//docker run -p 6379:6379 -d redis
//docker run -p 6333:6333 -p 6334:6334 -v complianceVectors:/qdrant/storage qdrant/qdrant

// the tracker defaults to sqlite under DATA_DIR, no container needed
// TRACKER_BACKEND=redis and STATE_BACKEND=redis share the redis above

// seed the corpus once without the server
//go run ./cmd/compliancectl update

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
