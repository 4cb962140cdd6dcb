// Package mmr implements the arithmetic, append, bagging and proof
// primitives for Merkle Mountain Ranges.
package mmr

/*

# Why Merkle Mountain Ranges

Merkle binary trees are the simplest merkle structure. Mountain ranges are a
method of working with binary merkle trees that has compelling benefits for an
append only log:

1. The structure is strictly append only and it is easy to prove this is the case
2. The position of a value in the range is easily provable
3. The whole log is summarised by one short root, and any single element can be
   shown to be under that root in O(log n) work

All of this is achieved mostly due to one simple property: trees only grow to
the right and nothing is ever inserted. The mountain range comes from the fact
that this requires us to maintain multiple 'peaks', with previous peaks being
combined as new elements are added. It turns out the peaks can be managed
knowing only the total number of elements in the range.

# Positions

Every node, leaf or interior, has a one based position. Positions are
allocated in the order nodes are created, which is the post order traversal of
the forest:

       7
    3     6
  1   2 4   5

The post order is children first, parents 'post', siblings left to right.
Because of the back filling rule, this is the natural order of insertion. To
jump around this sequence we can do some fairly straightforward binary
arithmetic, because it is a binary tree. For example 'jumping right' from 3 to
its sibling 6 is just

	3 + (2 << 1) - 1

And no matter how large the range grows, that operation remains the same.

# Height

The height of a node is found by writing its position in binary. The left most
node at each height is all ones, 1, 11, 111 and so on. Any other node can be
moved to the node at the same height on the left most branch by subtracting its
most significant bit, minus one. Repeat until the result is all ones, then
count them. See PosHeight.

# Peaks and the root

A peak is a node without a parent. Peaks are listed left to right, tallest
first. The root commits to the node count and to the bagged peaks:

	root = H(count, H(p1, H(p2, ... H(pk-1, pk))))

The count is encoded big endian and left padded to the hash width. An empty
range has the zero value as its root, and a single peak bags to itself.

# Proofs

An inclusion proof carries the siblings from the element up to its peak and
the full peak list. The verifier re-derives the direction of every step from
the position, climbs to the peak, checks that peak is in the list where it
belongs and then recomputes the root.

A consistency proof shows range b extends range a by proving each peak of a is
included in b at its original position.

This implementation draws from the following sources:

* https://github.com/mimblewimble/grin/blob/0ff6763ee64e5a14e70ddd4642b99789a1648a32/core/src/core/pmmr.rs#L606
* https://github.com/proofchains/python-proofmarshal/blob/master/proofmarshal/mmr.py
* https://github.com/jjyr/mmr.py/blob/master/mmr/mmr.py#L145

Good general backgrounders are:
* https://neptune.cash/learn/mmr/
* https://docs.grin.mw/wiki/chain-state/merkle-mountain-range/

*/
