package exr

// tileChunkIndex computes the position of a tile within its part's chunk
// offset table, given the header's tile description and level mode. Single
// level tiles are numbered row-major; mipmap and ripmap levels are numbered
// with every lower level's tiles first.
func tileChunkIndex(h *Header, tileX, tileY, levelX, levelY int) int {
	td := h.TileDescription()
	if td == nil || td.Mode == LevelModeOne {
		return tileY*h.NumXTiles(0) + tileX
	}

	offset := 0
	switch td.Mode {
	case LevelModeMipmap:
		for l := 0; l < levelX; l++ {
			offset += h.NumXTiles(l) * h.NumYTiles(l)
		}
		offset += tileY*h.NumXTiles(levelX) + tileX
	case LevelModeRipmap:
		for ly := 0; ly < levelY; ly++ {
			numY := h.NumYTiles(ly)
			for lx := 0; lx < h.NumXLevels(); lx++ {
				offset += h.NumXTiles(lx) * numY
			}
		}
		for lx := 0; lx < levelX; lx++ {
			offset += h.NumXTiles(lx) * h.NumYTiles(levelY)
		}
		offset += tileY*h.NumXTiles(levelX) + tileX
	}
	return offset
}
