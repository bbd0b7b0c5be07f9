package spirv

// capabilityImplications enumerates the SPIR-V specification's
// "implicitly declares" relationships: enabling the key also enables
// every capability in its value list.
var capabilityImplications = map[Capability][]Capability{
	CapabilityShader:       {CapabilityMatrix},
	CapabilityGeometry:     {CapabilityShader},
	CapabilityTessellation: {CapabilityShader},

	CapabilityVector16:       {CapabilityKernel},
	CapabilityFloat16Buffer:  {CapabilityKernel},
	CapabilityImageBasic:     {CapabilityKernel},
	CapabilityPipes:          {CapabilityKernel},
	CapabilityDeviceEnqueue:  {CapabilityKernel},
	CapabilityLiteralSampler: {CapabilityKernel},

	CapabilityInt64Atomics: {CapabilityInt64},

	CapabilityImageReadWrite: {CapabilityImageBasic},
	CapabilityImageMipmap:    {CapabilityImageBasic},

	CapabilityImageCubeArray: {CapabilitySampledCubeArray},
	CapabilityImageRect:      {CapabilitySampledRect},
	CapabilityGenericPointer: {CapabilityAddresses},
	CapabilityImage1D:        {CapabilitySampled1D},
	CapabilityImageBuffer:    {CapabilitySampledBuffer},

	CapabilityTessellationPointSize: {CapabilityTessellation},
	CapabilityGeometryPointSize:     {CapabilityGeometry},
	CapabilityGeometryStreams:       {CapabilityGeometry},
	CapabilityMultiViewport:         {CapabilityGeometry},
}

// closeCapabilities returns the fixed point of enabled under
// capabilityImplications: every capability transitively implied by a
// member of enabled, without disturbing first-insertion order for
// members already present. Newly discovered implied capabilities are
// appended in the order they are first required.
func closeCapabilities(enabled []Capability, newlyAdded Capability) []Capability {
	has := make(map[Capability]bool, len(enabled))
	for _, c := range enabled {
		has[c] = true
	}

	queue := []Capability{newlyAdded}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if has[c] {
			continue
		}
		has[c] = true
		enabled = append(enabled, c)
		queue = append(queue, capabilityImplications[c]...)
	}

	return enabled
}
