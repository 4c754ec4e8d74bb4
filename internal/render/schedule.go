package render

// ScheduleCategory names one of the ordered, per-memory schedule lists
// render resources append to. Items within a category/memory pair
// execute in insertion order; categories and frames-in-flight each get
// their own list.
type ScheduleCategory int

const (
	ScheduleBufferFlush ScheduleCategory = iota
	ScheduleImageUpload
	ScheduleDestruction
)

// ScheduleItem is one deferred render operation.
type ScheduleItem struct {
	Category ScheduleCategory
	Run      func(Device) error
}

// Schedule is the per-frame-in-flight, per-category ordered item list.
// Guarded by an atomic-int spin lock per spec's shared-resource list.
type Schedule struct {
	lock  spinLock
	lists map[ScheduleCategory][]ScheduleItem
}

// NewSchedule creates an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{lists: make(map[ScheduleCategory][]ScheduleItem)}
}

// Append adds item to the end of its category's list.
func (s *Schedule) Append(item ScheduleItem) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.lists[item.Category] = append(s.lists[item.Category], item)
}

// Flush executes and clears every item in category, in insertion order.
func (s *Schedule) Flush(dev Device, category ScheduleCategory) error {
	s.lock.Lock()
	items := s.lists[category]
	s.lists[category] = nil
	s.lock.Unlock()

	for _, it := range items {
		if err := it.Run(dev); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many pending items sit in category, for tests.
func (s *Schedule) Len(category ScheduleCategory) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.lists[category])
}
