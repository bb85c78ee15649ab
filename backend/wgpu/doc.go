// Package wgpu provides the venus backend over the gogpu/wgpu HAL.
//
// The HAL exposes WebGPU-style render passes rather than an immediate
// command list, so lists are translated when they are closed:
//
//   - SetRenderTargets selects the attachments of the next pass
//   - the first draw opens the pass; pending clears of its targets become
//     LoadOpClear, every other attachment uses LoadOpLoad
//   - viewport, scissor and pipeline are re-applied at every pass start
//   - clears of targets never drawn to get a clear-only pass at Close
//
// Each allocator owns the HAL command buffers of its lists and frees them
// on Reset, which venus only calls once the queue fence has passed them.
//
// Devices are opened on Vulkan with Open, wrap an existing HAL device with
// New, or share a gpucontext provider's device with NewFromProvider.
// The package registers itself as backend.BackendWGPU.
//
// Build with -tags nogpu to exclude the HAL dependency.
package wgpu
