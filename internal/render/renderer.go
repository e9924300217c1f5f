package render

// Renderer is the capability set shared by the four output backends.
// Renderer state is carried per instance; nothing is process-wide.
type Renderer interface {
	OpenStruct(name string)
	CloseStruct()
	AddMember(group *Group, item *Item, headers int)
	PrintGroup(group *Group, headers int)

	// headersPass reports which pass the next frame performs: 1 and 2 are
	// the column-mode header rows, 0 is data.
	headersPass() int
}

// printGroup emits one group, skipping groups with no present counter.
func printGroup(r Renderer, g *Group, headers int) {
	if !g.present() {
		return
	}
	r.OpenStruct(g.Name)
	for _, it := range g.Items {
		r.AddMember(g, it, headers)
	}
	r.CloseStruct()
}

// Emit writes one frame through the renderer. It returns false when only a
// header row was produced and the caller must emit again to get data.
func Emit(r Renderer, f *Frame) bool {
	headers := r.headersPass()

	r.OpenStruct("")
	for _, g := range f.headerGroups() {
		r.PrintGroup(g, headers)
	}
	if f.IMC != nil {
		r.PrintGroup(f.IMC, headers)
	}
	if len(f.Engines) > 0 {
		r.OpenStruct("engines")
		for _, g := range f.Engines {
			r.PrintGroup(g, headers)
		}
		r.CloseStruct()
	}
	r.CloseStruct()

	return headers == 0
}
