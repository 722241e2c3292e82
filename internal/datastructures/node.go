package datastructures

type (
	// node is a cell of the singly linked chain shared by stacks and queues.
	node[E any] struct {
		element E
		next    *node[E]
	}

	// dnode is a cell of a DoublyLinkedList. Sentinels hold the zero value.
	dnode[E any] struct {
		element E
		prev    *dnode[E]
		next    *dnode[E]
	}
)
