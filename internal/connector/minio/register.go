package minio

import "github.com/datascienceChris/datahub/internal/endpoint"

func init() {
	endpoint.RegisterSink(SinkType, OpenSink)
}
