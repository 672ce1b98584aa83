package fax

// leadingOne maps a byte to the index of its most significant set bit.
var leadingOne = [256]uint8{
	8, 7, 6, 6, 5, 5, 5, 5, 4, 4, 4, 4, 4, 4, 4, 4, 3, 3, 3, 3, 3, 3, 3, 3,
	3, 3, 3, 3, 3, 3, 3, 3, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var blackRuns = []byte{
	0, 2, 0x02, 3, 0, 0x03, 2, 0, 2, 0x02, 1, 0, 0x03, 4, 0, 2, 0x02, 6, 0, 0x03, 5, 0, 1, 0x03, 7, 0, 2, 0x04, 9, 0, 0x05, 8, 0, 3, 0x04, 10, 0, 0x05, 11, 0, 0x07, 12, 0, 2, 0x04, 13, 0, 0x07, 14, 0, 1, 0x18, 15, 0, 5, 0x08, 18, 0, 0x0f, 64, 0, 0x17, 16, 0, 0x18, 17, 0, 0x37, 0, 0, 10, 0x08, 0x00, 0x07, 0x0c, 0x40, 0x07, 0x0d, 0x80, 0x07, 0x17, 24, 0, 0x18, 25, 0, 0x28, 23, 0, 0x37, 22, 0, 0x67, 19, 0, 0x68, 20, 0, 0x6c, 21, 0, 54, 0x12, 1984 % 256, 1984 / 256, 0x13, 2048 % 256, 2048 / 256, 0x14, 2112 % 256, 2112 / 256, 0x15, 2176 % 256, 2176 / 256, 0x16, 2240 % 256, 2240 / 256, 0x17, 2304 % 256, 2304 / 256, 0x1c, 2368 % 256, 2368 / 256, 0x1d, 2432 % 256, 2432 / 256, 0x1e, 2496 % 256, 2496 / 256, 0x1f, 2560 % 256, 2560 / 256, 0x24, 52, 0, 0x27, 55, 0, 0x28, 56, 0, 0x2b, 59, 0, 0x2c, 60, 0, 0x33, 320 % 256, 320 / 256, 0x34, 384 % 256, 384 / 256, 0x35, 448 % 256, 448 / 256, 0x37, 53, 0, 0x38, 54, 0, 0x52, 50, 0, 0x53, 51, 0, 0x54, 44, 0, 0x55, 45, 0, 0x56, 46, 0, 0x57, 47, 0, 0x58, 57, 0, 0x59, 58, 0, 0x5a, 61, 0, 0x5b, 256 % 256, 256 / 256, 0x64, 48, 0, 0x65, 49, 0, 0x66, 62, 0, 0x67, 63, 0, 0x68, 30, 0, 0x69, 31, 0, 0x6a, 32, 0, 0x6b, 33, 0, 0x6c, 40, 0, 0x6d, 41, 0, 0xc8, 128, 0, 0xc9, 192, 0, 0xca, 26, 0, 0xcb, 27, 0, 0xcc, 28, 0, 0xcd, 29, 0, 0xd2, 34, 0, 0xd3, 35, 0, 0xd4, 36, 0, 0xd5, 37, 0, 0xd6, 38, 0, 0xd7, 39, 0, 0xda, 42, 0, 0xdb, 43, 0, 20, 0x4a, 640 % 256, 640 / 256, 0x4b, 704 % 256, 704 / 256, 0x4c, 768 % 256, 768 / 256, 0x4d, 832 % 256, 832 / 256, 0x52, 1280 % 256, 1280 / 256, 0x53, 1344 % 256, 1344 / 256, 0x54, 1408 % 256, 1408 / 256, 0x55, 1472 % 256, 1472 / 256, 0x5a, 1536 % 256, 1536 / 256, 0x5b, 1600 % 256, 1600 / 256, 0x64, 1664 % 256, 1664 / 256, 0x65, 1728 % 256, 1728 / 256, 0x6c, 512 % 256, 512 / 256, 0x6d, 576 % 256, 576 / 256, 0x72, 896 % 256, 896 / 256, 0x73, 960 % 256, 960 / 256, 0x74, 1024 % 256, 1024 / 256, 0x75, 1088 % 256, 1088 / 256, 0x76, 1152 % 256, 1152 / 256, 0x77, 1216 % 256, 1216 / 256, 0xff,
}

var whiteRuns = []byte{
	0, 0, 0, 6, 0x07, 2, 0, 0x08, 3, 0, 0x0B, 4, 0, 0x0C, 5, 0, 0x0E, 6, 0, 0x0F, 7, 0, 6, 0x07, 10, 0, 0x08, 11, 0, 0x12, 128, 0, 0x13, 8, 0, 0x14, 9, 0, 0x1b, 64, 0, 9, 0x03, 13, 0, 0x07, 1, 0, 0x08, 12, 0, 0x17, 192, 0, 0x18, 1664 % 256, 1664 / 256, 0x2a, 16, 0, 0x2B, 17, 0, 0x34, 14, 0, 0x35, 15, 0, 12, 0x03, 22, 0, 0x04, 23, 0, 0x08, 20, 0, 0x0c, 19, 0, 0x13, 26, 0, 0x17, 21, 0, 0x18, 28, 0, 0x24, 27, 0, 0x27, 18, 0, 0x28, 24, 0, 0x2B, 25, 0, 0x37, 256 % 256, 256 / 256, 42, 0x02, 29, 0, 0x03, 30, 0, 0x04, 45, 0, 0x05, 46, 0, 0x0a, 47, 0, 0x0b, 48, 0, 0x12, 33, 0, 0x13, 34, 0, 0x14, 35, 0, 0x15, 36, 0, 0x16, 37, 0, 0x17, 38, 0, 0x1a, 31, 0, 0x1b, 32, 0, 0x24, 53, 0, 0x25, 54, 0, 0x28, 39, 0, 0x29, 40, 0, 0x2a, 41, 0, 0x2b, 42, 0, 0x2c, 43, 0, 0x2d, 44, 0, 0x32, 61, 0, 0x33, 62, 0, 0x34, 63, 0, 0x35, 0, 0, 0x36, 320 % 256, 320 / 256, 0x37, 384 % 256, 384 / 256, 0x4a, 59, 0, 0x4b, 60, 0, 0x52, 49, 0, 0x53, 50, 0, 0x54, 51, 0, 0x55, 52, 0, 0x58, 55, 0, 0x59, 56, 0, 0x5a, 57, 0, 0x5b, 58, 0, 0x64, 448 % 256, 448 / 256, 0x65, 512 % 256, 512 / 256, 0x67, 640 % 256, 640 / 256, 0x68, 576 % 256, 576 / 256, 16, 0x98, 1472 % 256, 1472 / 256, 0x99, 1536 % 256, 1536 / 256, 0x9a, 1600 % 256, 1600 / 256, 0x9b, 1728 % 256, 1728 / 256, 0xcc, 704 % 256, 704 / 256, 0xcd, 768 % 256, 768 / 256, 0xd2, 832 % 256, 832 / 256, 0xd3, 896 % 256, 896 / 256, 0xd4, 960 % 256, 960 / 256, 0xd5, 1024 % 256, 1024 / 256, 0xd6, 1088 % 256, 1088 / 256, 0xd7, 1152 % 256, 1152 / 256, 0xd8, 1216 % 256, 1216 / 256, 0xd9, 1280 % 256, 1280 / 256, 0xda, 1344 % 256, 1344 / 256, 0xdb, 1408 % 256, 1408 / 256, 0, 3, 0x08, 1792 % 256, 1792 / 256, 0x0c, 1856 % 256, 1856 / 256, 0x0d, 1920 % 256, 1920 / 256, 10, 0x12, 1984 % 256, 1984 / 256, 0x13, 2048 % 256, 2048 / 256, 0x14, 2112 % 256, 2112 / 256, 0x15, 2176 % 256, 2176 / 256, 0x16, 2240 % 256, 2240 / 256, 0x17, 2304 % 256, 2304 / 256, 0x1c, 2368 % 256, 2368 / 256, 0x1d, 2432 % 256, 2432 / 256, 0x1e, 2496 % 256, 2496 / 256, 0x1f, 2560 % 256, 2560 / 256, 0xff,
}
