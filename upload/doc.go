// This file is part of N64Build.
//
// N64Build is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// N64Build is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with N64Build.  If not, see <https://www.gnu.org/licenses/>.


// Package upload transfers the image to an emulator or to a device.
//
// Every uploader implements the Uploader interface. Device maintenance is
// optional. An uploader that can reset the device implements Resetter and
// one that can write files to the device's SD card implements SDUploader.
//
// The ares uploader launches the emulator with the image. The custom
// uploader runs the command in the upload.command preference and is the way
// to reach a real flash cart with its vendor tool (for example
// UNFLoader for the 64drive and EverDrive, or sc64deployer for the
// SummerCart64).
//
// The serial uploader speaks a small reference protocol of its own. It is
// not the protocol of any commercial flash cart. It is intended for
// development boards and loaders that implement the protocol on the device
// side. Each request is a single frame, all values big-endian:
//
//	0   magic "N64U"
//	4   command: 'W' write image, 'S' write file to SD card, 'R' reset
//	5   length of the name (uint16)
//	7   name
//	    length of the data (uint32)
//	    data
//	    CRC-32 (IEEE) of the data (uint32)
//
// The device answers every frame with four bytes: "OK" and two zero bytes,
// or "ER" and a two byte error code. A reset is also signalled by pulsing
// DTR low before the reset frame is sent.
package upload
