// Package render draws a spatially indexed point and edge set at a bounded
// cost per frame.
//
// # Overview
//
// Every frame is planned from scratch from the camera [Transform] and the
// [grid.Grid]:
//
//  1. The visible world rectangle is the screen padded by one screen size on
//     every side.
//  2. Node cells whose bounds meet it are visible; their point counts sum to
//     the potential point count. Link cells are visible when their node cell
//     is, or when their separately tracked edge bounds meet the rectangle.
//  3. The LOD ratio is min(1, VertexBudget/potential).
//  4. Edges are drawn only while potential < EdgeThreshold.
//  5. Each visible cell draws ceil(count*ratio) points from the front of its
//     range. Ranges are sorted by descending size, so truncation keeps the
//     largest points.
//
// Positions are uploaded relative to their cell origin and the origin is
// folded into the per-draw transform, which keeps float32 precision when the
// world is millions of units wide.
//
// # Backends
//
// The GPU is reached through [Backend]. [raster] implements it in software
// on github.com/gogpu/gg for PNG output and tests.
//
// # Scheduling
//
// [Scheduler] coalesces redraw requests: at most one frame is pending at a
// time and further requests before it runs are dropped.
//
// [raster]: github.com/canopyviz/canopy/pkg/render/raster
package render
