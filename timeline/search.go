package timeline

// FindRoots returns the entity roots at or below n in document order. A
// node carrying the entity class is returned as is and not searched further;
// any other node is searched through its element children.
func FindRoots(n Node, entityClass string) []Node {
	var roots []Node
	var walk func(Node)
	walk = func(n Node) {
		if n.HasClass(entityClass) {
			roots = append(roots, n)
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(n)
	return roots
}
