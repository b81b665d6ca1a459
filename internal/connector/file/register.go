package file

import "github.com/datascienceChris/datahub/internal/endpoint"

func init() {
	endpoint.RegisterSource(Type, OpenSource)
	endpoint.RegisterSink(Type, OpenSink)
}
