// Package idw estimates a scalar field on grid points from scattered
// station measurements using Inverse Distance Weighting.
//
// Responsibilities: nearest-station search (Index), per-point weighting
// and the global-mean fallback for data-sparse regions (Engine), and
// bounded batch execution over large grids.
// Key types: Station, Point, Neighbor, InterpolatedValue, Config.
//
// Stations and grid points must share one planar projection with metre
// units. The package never reprojects; callers compare SRS ids before
// handing coordinates over. No I/O is performed here.
package idw
