// Package fim detects unauthorized or unexpected changes to files.
//
// A baseline records the hash, size and modification time of every regular
// file under a set of roots. Comparing a later snapshot with the baseline
// yields created, deleted and modified files:
//
//	b := &fim.Builder{Roots: []string{"/etc"}, Algorithm: fim.SHA256}
//	records, err := b.Build(ctx)
//	if err != nil {
//		return err
//	}
//	err = fim.SaveBaseline(records, "baseline.json")
//
//	// later
//	changes, err := fim.Scan(ctx, b, "baseline.json")
//	for _, c := range changes {
//		fmt.Println(c)
//	}

// Watch Functionality
//
// A Supervisor reports changes continuously, from periodic full scans,
// filesystem notifications, or both:
//
//	source, err := fim.NewFSNotifySource(logger)
//	if err != nil {
//		return err // wraps fim.ErrRealtimeUnavailable
//	}
//	sup := &fim.Supervisor{
//		Baseline: baseline,
//		Builder:  b,
//		Reporter: fim.LogReporter(logger),
//		Source:   source,
//		Interval: time.Minute,
//		Debounce: 250 * time.Millisecond,
//	}
//	err = sup.Run(ctx, fim.ModeBoth)
//
// Move events are reported without hashing; every other event re-examines
// the single path against the baseline.

package fim
