package generator

// countSamples sums the sample counts found in the shape metadata of files.
// Only headers are read; payloads are left alone.
func (g *Generator[C]) countSamples(files []string) (int, error) {
	total := 0
	for _, f := range files {
		shapes, err := g.newContainer().ReadShapesFromFile(f)
		if err != nil {
			return 0, &ConfigurationError{Path: f, Reason: "cannot read shape metadata", Err: err}
		}
		// the first dimension of the first feature array is the sample count
		n, ok := shapes.SampleCount()
		if !ok {
			return 0, &ConfigurationError{Path: f, Reason: "no features filled"}
		}
		if n < 0 {
			return 0, &ConfigurationError{Path: f, Reason: "negative sample count"}
		}
		total += n
	}
	return total, nil
}
