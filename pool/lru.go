package pool

// activation is a node in the activation list. The list head is the most
// recently activated registration, the tail the least.
type activation struct {
	reg  *registration
	prev *activation
	next *activation
}

// activationList orders registrations by activation. It is not
// thread-safe; Manager.mu guards it.
type activationList struct {
	head *activation
	tail *activation
	len  int
}

// Len returns the number of nodes in the list.
func (l *activationList) Len() int {
	return l.len
}

// PushFront inserts reg as the most recently activated entry.
func (l *activationList) PushFront(reg *registration) *activation {
	node := &activation{reg: reg}
	l.linkFront(node)
	return node
}

// MoveToFront marks an existing node most recently activated.
func (l *activationList) MoveToFront(node *activation) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove unlinks node. Removing a nil node is a no-op.
func (l *activationList) Remove(node *activation) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// Oldest returns the least recently activated registration, or nil.
func (l *activationList) Oldest() *registration {
	if l.tail == nil {
		return nil
	}
	return l.tail.reg
}

// Each visits registrations from least to most recently activated.
func (l *activationList) Each(fn func(*registration)) {
	for n := l.tail; n != nil; n = n.prev {
		fn(n.reg)
	}
}

func (l *activationList) linkFront(node *activation) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

func (l *activationList) unlink(node *activation) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
