// Package kernel holds the pure numeric building blocks shared by the
// post-processing engines and the CPU reference device: filter weights,
// circle-of-confusion models, colour helpers and view-space reconstruction.
//
// Nothing here touches surfaces or devices, so every function can be tested
// in isolation and reused by any backend.
package kernel
