package kafka

import "github.com/datascienceChris/datahub/internal/endpoint"

func init() {
	endpoint.RegisterSource(SourceType, Open)
}
