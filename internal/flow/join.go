package flow

// JoinLatest combines a list of primary items with a secondary value fetched
// per item. Each output element is combine(index, item, secondary).
//
// A new primary list cancels the secondary subscriptions of the previous one.
// An empty primary list emits an empty result without subscribing to
// anything. Otherwise the secondary flows run concurrently and a result is
// emitted once every item has a secondary value, and again each time one of
// them changes.
func JoinLatest[P, S, R any](primary Flow[[]P], secondary func(P) Flow[S], combine func(int, P, S) R) Flow[[]R] {
	return SwitchMap(primary, func(items []P) Flow[[]R] {
		if len(items) == 0 {
			return Of([]R{})
		}

		flows := make([]Flow[S], len(items))
		for i, item := range items {
			flows[i] = secondary(item)
		}

		return Map(CombineLatest(flows...), func(latest []S) []R {
			out := make([]R, len(items))
			for i, item := range items {
				out[i] = combine(i, item, latest[i])
			}
			return out
		})
	})
}
