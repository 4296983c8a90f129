// Package graph defines the scene data model for brushcsg.
// A scene is a DAG of models, sub-models, composites and brushes joined by
// edges that carry a boolean operation and a local transformation. The CSG
// core treats the scene as read-only; only the host mutates it, through the
// Scene methods, between evaluation passes.
package graph
