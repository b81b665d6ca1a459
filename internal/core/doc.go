// Package core provides the catalog record model shared by sources, sinks and
// the golden-file comparator.
//
// Structure:
//
//	urn.go    - dataset and platform URNs, fabric (environment) names
//	aspect.go - Status, SchemaMetadata, DatasetProperties, usage statistics
//	record.go - MetadataRecord and its JSON stream encoding
package core
