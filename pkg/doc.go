// Package pkg provides the core libraries for Canopy, a renderer for
// phylogenetic trees with millions of tips.
//
// # Overview
//
// Canopy turns a Newick tree into flat structure-of-arrays buffers (one
// float32 slice per point attribute, one uint32 slice per link endpoint)
// and draws them through a level-of-detail planner that bounds the work per
// frame, whatever the size of the tree.
//
// # Architecture
//
// The typical data flow:
//
//	Newick text (file, URL or literal)
//	         ↓
//	    [newick] package (iterative parse into parent/children arrays)
//	         ↓
//	    [layout] package (leaf-step y, cumulative branch-length x)
//	         ↓
//	    [visual] package (points, bends, leaf markers, links → [soa] buffers)
//	         ↓
//	    [snapshot] / [stream] (GTOL binary or gzip JSON)
//	         ↓
//	    [grid] → [render] → [labels] (LOD frame and label placement)
//
// [pipeline] runs the first four stages with caching and is shared by the
// CLI and the HTTP server.
//
// # Main Packages
//
// ## Domain
//
// [newick] - Newick parser with strict and relaxed modes and a node limit.
//
// [layout] - Rectangular tree coordinates, plus the polar transform.
//
// [visual] - Orthogonal edge routing and point styling.
//
// [soa] - Growable typed vectors, point/link buffers and label storage.
//
// [stream] - Chunked JSON graph parser that tolerates truncated and
// malformed input, and the matching writer.
//
// [snapshot] - The GTOL container: a fixed header and aligned sections that
// can be read one at a time.
//
// ## Rendering
//
// [grid] - Spatial index of points and edges, cells sorted by point size.
//
// [render] - Camera, frame planning under a vertex budget, and the Renderer
// that issues draw calls to a Backend. [render/raster] draws with gogpu/gg;
// [render/nodelink] exports small trees through Graphviz.
//
// [labels] - Bounded greedy label placement.
//
// [search] - Label search over string or blob label sets, with a worker.
//
// ## Infrastructure
//
// [pipeline] - Parse → layout → build → encode, caching, input sniffing and
// asynchronous jobs with progress messages.
//
// [cache] - File, bolt and Redis byte stores with TTLs.
//
// [config] - TOML/YAML configuration with defaults.
//
// [httputil] - URL input fetching with retry.
//
// [observability] and [metrics] - Hook interfaces and their Prometheus
// implementation.
//
// [errors] - Error codes shared by every layer.
//
// # Testing
//
//	go test ./...
package pkg
